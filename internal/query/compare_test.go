package query_test

import (
	"testing"

	. "github.com/tobsdb/tobsql/internal/query"
	"gotest.tools/assert"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		literal any
		op      Operator
		field   any
		match   bool
	}{
		{25, OpGt, 20, false},
		{25, OpGt, 30, true},
		{25, OpLt, 20, true},
		{25, OpGte, 25, true},
		{25, OpLte, 26, false},
		{1, OpEq, 1.0, true},
		{"1", OpEq, 1, false},
		{"a", OpNeq, "b", true},
		{[]any{1, 2}, OpIn, 2, true},
		{[]any{1, 2}, OpNotIn, 2, false},
		{[]any{1, 2}, OpNotIn, 3, true},
		{"LIC", OpLike, "alice", true},
		{"^al", OpRegex, "alice", true},
		{"^AL", OpRegex, "alice", false},
		{[]any{1, 3}, OpBetween, 2, true},
		{[]any{1, 3}, OpBetween, 1, false},
		{[]any{1, 3}, OpBetween, 3, false},
		{"x", OpHave, []any{"y", "x"}, true},
		{"z", OpHave, []any{"y", "x"}, false},
		{"b", OpGt, "a", false},
		{"a", OpGt, "b", true},
		{1, OpGt, "b", false},
		{nil, OpEq, nil, true},
	}

	for _, c := range cases {
		expected := NoMatch
		if c.match {
			expected = Match
		}
		assert.Equal(t, Compare(c.literal, c.op, c.field), expected, "%v %s %v", c.field, c.op, c.literal)
	}
}

func TestParseOperator(t *testing.T) {
	op, ok := ParseOperator(" not  in ")
	assert.Assert(t, ok)
	assert.Equal(t, op, OpNotIn)

	op, ok = ParseOperator("regexp")
	assert.Assert(t, ok)
	assert.Equal(t, op, OpRegex)

	_, ok = ParseOperator("~=")
	assert.Assert(t, !ok)
}
