package query

import (
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

// projection is the parsed column list of a select.
type projection struct {
	calls []*Call
	// output key -> source expression, in select order
	keys  []string
	exprs map[string]string
}

func parseProjection(columns []string) *projection {
	pr := &projection{exprs: map[string]string{}}
	for _, column := range columns {
		if call, ok := ParseCall(column); ok {
			pr.calls = append(pr.calls, call)
			pr.add(call.As, call.As)
			continue
		}
		expr, alias := ParseColumn(column)
		pr.add(alias, expr)
	}
	return pr
}

func (pr *projection) add(key, expr string) {
	if _, ok := pr.exprs[key]; !ok {
		pr.keys = append(pr.keys, key)
	}
	pr.exprs[key] = expr
}

func (pr *projection) apply(row builder.Row) builder.Row {
	if len(pr.keys) == 0 {
		return row.Clone()
	}
	out := builder.Row{}
	for _, key := range pr.keys {
		out.Set(key, Resolve(row, pr.exprs[key]))
	}
	return out
}

func (e *Executor) selectRows(t *builder.Table, p *Plan, mods []Modifier) ([]builder.Row, error) {
	pr := parseProjection(p.Columns)
	if len(pr.calls) > 0 {
		for _, call := range pr.calls {
			if _, ok := e.Functions.Get(call.Name); !ok {
				return nil, NewQueryArgumentError("Unknown function %s", call.Name)
			}
		}
		// grouped rows always carry their group columns
		for _, key := range p.GroupBy {
			if _, ok := pr.exprs[key.Column]; !ok {
				pr.keys = append([]string{key.Column}, pr.keys...)
				pr.exprs[key.Column] = key.Column
			}
		}
	}

	fingerprint, cacheable := uint64(0), false
	if p.Join == nil {
		fingerprint, cacheable = Fingerprint(t.Name, mods)
	}
	if cacheable {
		if entry, ok := t.Cache.Get(fingerprint); ok {
			pkg.DebugLog("cache hit on", t.Name)
			if entry.Rows != nil {
				return cloneRows(entry.Rows), nil
			}
			out := make([]builder.Row, len(entry.Ids))
			for i, id := range entry.Ids {
				out[i] = pr.apply(t.Row(id))
			}
			return out, nil
		}
	}

	var records []record
	if p.Join != nil {
		joined, j, err := e.join(t, p.Join)
		if err != nil {
			return nil, err
		}
		if p.Where != nil {
			joined = FilterRows(joined, j.qualify(p.Where))
		}
		for _, row := range joined {
			records = append(records, record{-1, row})
		}
	} else {
		for _, id := range matchIds(t, p.Where) {
			records = append(records, record{id, t.Row(id)})
		}
	}

	if len(pr.calls) > 0 {
		var err error
		if records, err = e.aggregate(records, p.GroupBy, pr.calls); err != nil {
			return nil, err
		}
	} else if len(p.GroupBy) > 0 {
		records = flatten(groupRecords(records, p.GroupBy))
	}

	if p.Having != nil {
		records = filterRecords(records, p.Having)
	}
	if len(p.OrderBy) > 0 {
		sortRecords(records, p.OrderBy)
	}
	records = paginate(records, p)

	out := make([]builder.Row, len(records))
	ids := make([]builder.RowID, 0, len(records))
	for i, rec := range records {
		out[i] = pr.apply(rec.row)
		if rec.id >= 0 {
			ids = append(ids, rec.id)
		}
	}

	if cacheable {
		if len(ids) == len(records) {
			t.Cache.Add(fingerprint, builder.CacheEntry{Ids: ids})
		} else {
			t.Cache.Add(fingerprint, builder.CacheEntry{Rows: cloneRows(out)})
		}
	}
	return out, nil
}

// aggregate folds each group, or all records when there is no grouping,
// into a single row.
func (e *Executor) aggregate(records []record, group_by []SortKey, calls []*Call) ([]record, error) {
	if len(records) == 0 {
		return []record{}, nil
	}

	groups := [][]record{records}
	if len(group_by) > 0 {
		groups = groupRecords(records, group_by)
	}

	out := make([]record, 0, len(groups))
	for _, group := range groups {
		row, err := e.Functions.Aggregate(rowsOf(group), calls)
		if err != nil {
			return nil, err
		}
		out = append(out, record{-1, row})
	}
	return out, nil
}

func filterRecords(records []record, c *Condition) []record {
	ids := make([]builder.RowID, len(records))
	for i := range records {
		ids[i] = i
	}
	kept := FilterIds(ids, c, func(i builder.RowID) builder.Row { return records[i].row }, nil)

	out := make([]record, len(kept))
	for i, k := range kept {
		out[i] = records[k]
	}
	return out
}

func paginate(records []record, p *Plan) []record {
	if p.Offset >= len(records) {
		return []record{}
	}
	records = records[p.Offset:]
	if p.HasLimit && p.Limit < len(records) {
		records = records[:p.Limit]
	}
	return records
}

func cloneRows(rows []builder.Row) []builder.Row {
	out := make([]builder.Row, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out
}
