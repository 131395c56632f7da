package query

import (
	"strings"

	"github.com/tobsdb/tobsql/internal/builder"
)

// joiner materializes rows combining two tables. Keys are namespaced
// "<table>.<column>".
type joiner struct {
	left, right *builder.Table
	kind        JoinType
	where       *Condition
	memo        *builder.JoinIndex
}

func namespace(table *builder.Table, row builder.Row, out builder.Row) {
	for _, key := range table.Columns.Sorted {
		if row == nil {
			out.Set(table.Name+"."+key, nil)
			continue
		}
		out.Set(table.Name+"."+key, row.Get(key))
	}
	for key, v := range row {
		if !table.Columns.Has(key) {
			out.Set(table.Name+"."+key, v)
		}
	}
}

// qualify rewrites bare join fields to the column of the table that has
// it, right table first.
func (j *joiner) qualify(c *Condition) *Condition {
	if c == nil {
		return nil
	}
	out := &Condition{Joiners: c.Joiners, Triples: make([]Triple, len(c.Triples))}
	for i, t := range c.Triples {
		t.Field = j.column(t.Field)
		out.Triples[i] = t
	}
	return out
}

func (j *joiner) column(field string) string {
	for _, table := range []*builder.Table{j.left, j.right} {
		if strings.HasPrefix(field, table.Name+".") {
			return field
		}
	}
	head, _, _ := strings.Cut(field, ".")
	for _, table := range []*builder.Table{j.right, j.left} {
		if table.Columns.Has(head) {
			return table.Name + "." + field
		}
	}
	return field
}

// value reads the literal of a join triple. A string naming a
// table-qualified column, "users.id", is read from the joined row. Any
// other string is compared as is.
func (j *joiner) value(row builder.Row) func(Triple) any {
	return func(t Triple) any {
		s, ok := t.Value.(string)
		if !ok || !j.qualified(s) {
			return t.Value
		}
		if v, found := row[s]; found {
			return v
		}
		if v := Resolve(row, s); v != nil {
			return v
		}
		return t.Value
	}
}

func (j *joiner) qualified(field string) bool {
	for _, table := range []*builder.Table{j.left, j.right} {
		rest, ok := strings.CutPrefix(field, table.Name+".")
		if !ok {
			continue
		}
		head, _, _ := strings.Cut(rest, ".")
		if table.Columns.Has(head) {
			return true
		}
	}
	return false
}

func (j *joiner) pair(l builder.RowID, r builder.RowID) builder.Row {
	ls, rs := j.left.Rows.Stamp(l), j.right.Rows.Stamp(r)
	if row, ok := j.memo.Get(j.left.Name, l, ls, j.right.Name, r, rs); ok {
		return row
	}
	row := builder.Row{}
	namespace(j.left, j.left.Row(l), row)
	namespace(j.right, j.right.Row(r), row)
	j.memo.Add(j.left.Name, l, ls, j.right.Name, r, rs, row)
	return row
}

func (j *joiner) placeholder(l, r builder.Row) builder.Row {
	row := builder.Row{}
	namespace(j.left, l, row)
	namespace(j.right, r, row)
	return row
}

// run scans every right row for each left row. Unmatched left rows are
// kept for left and outer joins; unmatched right rows are appended in
// right scan order for right and outer joins.
func (j *joiner) run(left_ids, right_ids []builder.RowID) []builder.Row {
	where := j.qualify(j.where)
	used := make([]bool, len(right_ids))
	out := []builder.Row{}

	for _, l := range left_ids {
		matched := false
		for ri, r := range right_ids {
			row := j.pair(l, r)
			if where != nil && !where.MatchRow(row, j.value(row)) {
				continue
			}
			matched = true
			used[ri] = true
			out = append(out, row)
		}
		if !matched && (j.kind == JoinLeft || j.kind == JoinOuter) {
			out = append(out, j.placeholder(j.left.Row(l), nil))
		}
	}

	if j.kind == JoinRight || j.kind == JoinOuter {
		for ri, r := range right_ids {
			if !used[ri] {
				out = append(out, j.placeholder(nil, j.right.Row(r)))
			}
		}
	}
	return out
}

// join returns the joined rows with the joiner that built them, so later
// modifiers can qualify bare column names the same way.
func (e *Executor) join(left *builder.Table, args *JoinArgs) ([]builder.Row, *joiner, error) {
	right := e.Schema.Tables.Get(args.Table)
	if right == nil {
		return nil, nil, tableNotFound(args.Table)
	}
	if right == left {
		return nil, nil, NewQueryArgumentError("cannot join table %s with itself", left.Name)
	}
	j := &joiner{left: left, right: right, kind: args.Type, where: args.Where, memo: e.Schema.Joins}
	return j.run(left.LiveIds(), right.LiveIds()), j, nil
}
