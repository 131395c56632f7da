package query

import (
	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

// Change describes what a mutating query did.
type Change struct {
	AffectedCount int                `json:"affectedCount"`
	Describe      builder.ChangeType `json:"describe"`
	AffectedRows  []builder.Row      `json:"affectedRows"`
}

type Result struct {
	Table string        `json:"table"`
	Rows  []builder.Row `json:"rows"`
	// nil for selects
	Change *Change `json:"change,omitempty"`
}

// Executor runs query descriptors against one schema. It does no locking
// of its own; callers serialize access to the schema.
type Executor struct {
	Schema    *builder.Schema
	Functions *Registry
}

func NewExecutor(schema *builder.Schema, functions *Registry) *Executor {
	if functions == nil {
		functions = NewRegistry()
	}
	return &Executor{Schema: schema, Functions: functions}
}

// Exec parses mods and runs them against table. Malformed queries fail
// before anything is read or written.
func (e *Executor) Exec(table string, mods []Modifier) (*Result, error) {
	t := e.Schema.Tables.Get(table)
	if t == nil {
		return nil, tableNotFound(table)
	}

	p, err := ParsePlan(mods)
	if err != nil {
		return nil, err
	}

	res := &Result{Table: table}
	switch p.Action {
	case ActionSelect:
		res.Rows, err = e.selectRows(t, p, mods)
	case ActionUpsert:
		res.Change, err = e.upsert(t, p)
	case ActionDelete:
		res.Change, err = e.delete(t, p)
	case ActionDrop:
		res.Change, err = e.drop(t)
	}
	if err != nil {
		return nil, err
	}

	if res.Change != nil {
		res.Rows = res.Change.AffectedRows
		pkg.DebugLog(p.Action, table, res.Change.Describe, res.Change.AffectedCount)
	}
	return res, nil
}

// Fingerprint hashes the serialized descriptor of a query on table. ok is
// false when the descriptor cannot be serialized.
func Fingerprint(table string, mods []Modifier) (uint64, bool) {
	data, err := json.Marshal(struct {
		Table string     `json:"table"`
		Query []Modifier `json:"query"`
	}{table, mods})
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(data), true
}

// tableLookup answers single triples from the pk map and the secondary
// indexes of t.
func tableLookup(t *builder.Table) IndexLookup {
	return func(tr Triple) ([]builder.RowID, bool) {
		if tr.Field == t.Pk {
			return pkLookup(t, tr)
		}
		idx := t.Indexes.Get(tr.Field)
		if idx == nil {
			return nil, false
		}

		switch tr.Op {
		case OpEq:
			if !pkg.IsScalar(tr.Value) || tr.Value == nil {
				return nil, false
			}
			return idx.Equal(tr.Value), true
		case OpIn:
			values, _ := pkg.AsSlice(tr.Value)
			ids := []builder.RowID{}
			for _, v := range values {
				if !pkg.IsScalar(v) || v == nil {
					return nil, false
				}
				ids = append(ids, idx.Equal(v)...)
			}
			return ids, true
		case OpGt, OpGte:
			if !rangeable(tr.Value) {
				return nil, false
			}
			return idx.Range(tr.Value, nil), true
		case OpLt, OpLte:
			if !rangeable(tr.Value) {
				return nil, false
			}
			return idx.Range(nil, tr.Value), true
		case OpBetween:
			bounds, _ := pkg.AsSlice(tr.Value)
			if !rangeable(bounds[0]) || !rangeable(bounds[1]) {
				return nil, false
			}
			return idx.Range(bounds[0], bounds[1]), true
		}
		return nil, false
	}
}

func rangeable(v any) bool {
	_, is_string := v.(string)
	return is_string || pkg.IsNumber(v)
}

func pkLookup(t *builder.Table, tr Triple) ([]builder.RowID, bool) {
	var values []any
	switch tr.Op {
	case OpEq:
		values = []any{tr.Value}
	case OpIn:
		values, _ = pkg.AsSlice(tr.Value)
	default:
		return nil, false
	}

	ids := []builder.RowID{}
	for _, v := range values {
		if v == nil || !pkg.IsScalar(v) {
			return nil, false
		}
		if id, ok := t.LookupPk(v); ok && t.IsLive(id) {
			ids = append(ids, id)
		}
	}
	return ids, true
}

// matchIds returns the live ids of t satisfying c, all of them when c is nil.
func matchIds(t *builder.Table, c *Condition) []builder.RowID {
	ids := t.LiveIds()
	if c == nil {
		return ids
	}
	return FilterIds(ids, c, t.Row, tableLookup(t))
}
