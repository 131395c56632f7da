package query

import (
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

type Joiner string

const (
	JoinerAnd Joiner = "AND"
	JoinerOr  Joiner = "OR"
)

// Triple is one [field, operator, value] predicate.
type Triple struct {
	Field string
	Op    Operator
	Value any
}

// Condition is a chain of triples read strictly left to right:
// a AND b OR c is (a AND b) OR c.
type Condition struct {
	Triples []Triple
	Joiners []Joiner
}

// ParseCondition reads either a single triple ["age", ">", 25] or a
// compound list [[...], "AND", [...], "OR", [...]].
func ParseCondition(arg any) (*Condition, error) {
	switch arg := arg.(type) {
	case *Condition:
		return arg, nil
	case Condition:
		return &arg, nil
	case Triple:
		t, err := checkTriple(arg)
		if err != nil {
			return nil, err
		}
		return &Condition{Triples: []Triple{t}}, nil
	}

	items, ok := pkg.AsSlice(arg)
	if !ok {
		return nil, NewQueryArgumentError("where condition must be an array, got %T", arg)
	}
	if len(items) == 0 {
		return nil, NewQueryArgumentError("where condition cannot be empty")
	}

	if _, single := items[0].(string); single {
		t, err := parseTriple(items)
		if err != nil {
			return nil, err
		}
		return &Condition{Triples: []Triple{t}}, nil
	}

	c := &Condition{}
	for i, item := range items {
		if i%2 == 1 {
			raw, ok := item.(string)
			joiner := Joiner(strings.ToUpper(strings.TrimSpace(raw)))
			if !ok || (joiner != JoinerAnd && joiner != JoinerOr) {
				return nil, NewQueryArgumentError("expected AND or OR at position %d of where condition", i)
			}
			c.Joiners = append(c.Joiners, joiner)
			continue
		}

		var t Triple
		var err error
		if triple, ok := item.(Triple); ok {
			t, err = checkTriple(triple)
		} else {
			parts, ok := pkg.AsSlice(item)
			if !ok {
				return nil, NewQueryArgumentError("expected a condition at position %d of where condition", i)
			}
			t, err = parseTriple(parts)
		}
		if err != nil {
			return nil, err
		}
		c.Triples = append(c.Triples, t)
	}

	if len(c.Triples) != len(c.Joiners)+1 {
		return nil, NewQueryArgumentError("where condition cannot end with %s", c.Joiners[len(c.Joiners)-1])
	}
	return c, nil
}

func parseTriple(parts []any) (Triple, error) {
	if len(parts) != 3 {
		return Triple{}, NewQueryArgumentError("condition must have 3 parts, got %d", len(parts))
	}
	field, ok := parts[0].(string)
	if !ok {
		return Triple{}, NewQueryArgumentError("condition field must be a string, got %T", parts[0])
	}
	raw_op, ok := parts[1].(string)
	if !ok {
		return Triple{}, NewQueryArgumentError("condition operator must be a string, got %T", parts[1])
	}
	return checkTriple(Triple{field, Operator(raw_op), parts[2]})
}

func checkTriple(t Triple) (Triple, error) {
	if strings.TrimSpace(t.Field) == "" {
		return t, NewQueryArgumentError("condition field cannot be empty")
	}
	op, ok := ParseOperator(string(t.Op))
	if !ok {
		return t, NewQueryArgumentError("Invalid operator: %s", t.Op)
	}
	t.Op = op

	switch op {
	case OpIn, OpNotIn:
		if _, ok := pkg.AsSlice(t.Value); !ok {
			return t, NewQueryArgumentError("%s expects an array", op)
		}
	case OpBetween:
		bounds, ok := pkg.AsSlice(t.Value)
		if !ok || len(bounds) != 2 {
			return t, NewQueryArgumentError("BETWEEN expects [low, high]")
		}
	case OpRegex:
		if _, err := compileRegex(toString(t.Value)); err != nil {
			return t, NewQueryArgumentError("Invalid regex: %s", err.Error())
		}
	}
	return t, nil
}

// Resolve reads field from row. A dotted field that is not a key of row
// walks into nested maps.
func Resolve(row builder.Row, field string) any {
	if row == nil {
		return nil
	}
	if v, ok := row[field]; ok {
		return v
	}

	parts := strings.Split(field, ".")
	for i := len(parts) - 1; i > 0; i-- {
		v, ok := row[strings.Join(parts[:i], ".")]
		if !ok {
			continue
		}
		for _, key := range parts[i:] {
			switch m := v.(type) {
			case map[string]any:
				v = m[key]
			case builder.Row:
				v = m[key]
			default:
				return nil
			}
		}
		return v
	}
	return nil
}

// IndexLookup proposes candidate ids for a triple. ok is false when no
// index can answer it.
type IndexLookup func(t Triple) (ids []builder.RowID, ok bool)

// FilterIds keeps the ids whose rows satisfy c. A single triple keeps
// scan order; combined triples come back sorted by id.
func FilterIds(ids []builder.RowID, c *Condition, get func(builder.RowID) builder.Row, lookup IndexLookup) []builder.RowID {
	first := matchTriple(ids, c.Triples[0], get, lookup)
	if len(c.Triples) == 1 {
		return first
	}

	acc := bitmapOf(first)
	for i, joiner := range c.Joiners {
		t := c.Triples[i+1]
		switch joiner {
		case JoinerAnd:
			acc.And(bitmapOf(matchTriple(idsOf(acc), t, get, lookup)))
		case JoinerOr:
			acc.Or(bitmapOf(matchTriple(ids, t, get, lookup)))
		}
	}
	return idsOf(acc)
}

func matchTriple(ids []builder.RowID, t Triple, get func(builder.RowID) builder.Row, lookup IndexLookup) []builder.RowID {
	candidates := ids
	if lookup != nil {
		if hits, ok := lookup(t); ok {
			set := bitmapOf(hits)
			candidates = pkg.Filter(ids, func(id builder.RowID) bool { return set.Contains(uint32(id)) })
		}
	}

	matched := []builder.RowID{}
	for _, id := range candidates {
		if Compare(t.Value, t.Op, Resolve(get(id), t.Field)) == Match {
			matched = append(matched, id)
		}
	}
	return matched
}

// FilterRows applies c to materialized rows, such as joined or grouped ones.
func FilterRows(rows []builder.Row, c *Condition) []builder.Row {
	ids := make([]builder.RowID, len(rows))
	for i := range rows {
		ids[i] = i
	}
	kept := FilterIds(ids, c, func(id builder.RowID) builder.Row { return rows[id] }, nil)

	out := make([]builder.Row, len(kept))
	for i, id := range kept {
		out[i] = rows[id]
	}
	return out
}

// MatchRow evaluates c against one row. value gives the literal to use
// for each triple.
func (c *Condition) MatchRow(row builder.Row, value func(Triple) any) bool {
	test := func(t Triple) bool {
		return Compare(value(t), t.Op, Resolve(row, t.Field)) == Match
	}

	result := test(c.Triples[0])
	for i, joiner := range c.Joiners {
		next := test(c.Triples[i+1])
		if joiner == JoinerAnd {
			result = result && next
		} else {
			result = result || next
		}
	}
	return result
}

func bitmapOf(ids []builder.RowID) *roaring.Bitmap {
	b := roaring.New()
	for _, id := range ids {
		b.Add(uint32(id))
	}
	return b
}

func idsOf(b *roaring.Bitmap) []builder.RowID {
	arr := b.ToArray()
	ids := make([]builder.RowID, len(arr))
	for i, v := range arr {
		ids[i] = builder.RowID(v)
	}
	return ids
}
