package query

import (
	"strings"

	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

// Modifier is one {type, args} step of a query descriptor. Modifiers may
// come in any order.
type Modifier struct {
	Type string `json:"type"`
	Args any    `json:"args,omitempty"`
}

type Action string

const (
	ActionUpsert Action = "upsert"
	ActionSelect Action = "select"
	ActionDelete Action = "delete"
	ActionDrop   Action = "drop"
)

const (
	ModWhere   = "where"
	ModJoin    = "join"
	ModGroupBy = "groupby"
	ModHaving  = "having"
	ModOrderBy = "orderby"
	ModOffset  = "offset"
	ModLimit   = "limit"
)

type JoinType string

const (
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinInner JoinType = "inner"
	JoinOuter JoinType = "outer"
	JoinCross JoinType = "cross"
)

type JoinArgs struct {
	Type  JoinType
	Table string
	Where *Condition
}

// Plan is a validated query descriptor.
type Plan struct {
	Action  Action
	Data    []builder.Row
	Columns []string
	Where   *Condition
	Join    *JoinArgs
	GroupBy []SortKey
	Having  *Condition
	OrderBy []SortKey
	Offset  int
	Limit   int
	// limit was given; a zero limit returns no rows
	HasLimit bool
}

// ParsePlan classifies modifiers by type and validates their args.
func ParsePlan(mods []Modifier) (*Plan, error) {
	p := &Plan{}
	seen := map[string]bool{}

	for _, mod := range mods {
		kind := strings.ToLower(strings.TrimSpace(mod.Type))
		if seen[kind] {
			return nil, NewQueryArgumentError("duplicate %s modifier", kind)
		}
		seen[kind] = true

		var err error
		switch kind {
		case string(ActionUpsert), string(ActionSelect), string(ActionDelete), string(ActionDrop):
			if p.Action != "" {
				return nil, NewQueryArgumentError("query has both %s and %s", p.Action, kind)
			}
			p.Action = Action(kind)
			err = p.parseAction(mod.Args)
		case ModWhere:
			p.Where, err = ParseCondition(mod.Args)
		case ModHaving:
			p.Having, err = ParseCondition(mod.Args)
		case ModJoin:
			p.Join, err = parseJoin(mod.Args)
		case ModGroupBy:
			p.GroupBy, err = ParseSortKeys(mod.Args)
		case ModOrderBy:
			p.OrderBy, err = ParseSortKeys(mod.Args)
		case ModOffset:
			p.Offset, err = parseCount(kind, mod.Args)
		case ModLimit:
			p.Limit, err = parseCount(kind, mod.Args)
			p.HasLimit = true
		default:
			err = NewQueryArgumentError("Invalid modifier type: %s", mod.Type)
		}
		if err != nil {
			return nil, err
		}
	}

	if p.Action == "" {
		return nil, NewQueryArgumentError("query has no action")
	}
	if p.Action != ActionSelect {
		for _, kind := range []string{ModJoin, ModGroupBy, ModHaving, ModOrderBy, ModOffset, ModLimit} {
			if seen[kind] {
				return nil, NewQueryArgumentError("%s cannot be used with %s", kind, p.Action)
			}
		}
	}
	if p.Action == ActionDrop && p.Where != nil {
		return nil, NewQueryArgumentError("drop cannot be used with where")
	}
	if p.Action == ActionUpsert && p.Where != nil && len(p.Data) > 1 {
		return nil, NewQueryArgumentError("upsert with where takes a single row")
	}
	return p, nil
}

func (p *Plan) parseAction(args any) (err error) {
	switch p.Action {
	case ActionUpsert:
		p.Data, err = parseRows(args)
	case ActionSelect, ActionDelete:
		p.Columns, err = parseColumns(args)
	}
	return err
}

func parseRows(args any) ([]builder.Row, error) {
	switch args := args.(type) {
	case builder.Row:
		return []builder.Row{args}, nil
	case map[string]any:
		return []builder.Row{args}, nil
	case []builder.Row:
		if len(args) == 0 {
			return nil, NewQueryArgumentError("upsert needs at least one row")
		}
		return args, nil
	}

	items, ok := pkg.AsSlice(args)
	if !ok || len(items) == 0 {
		return nil, NewQueryArgumentError("upsert needs a row or a list of rows")
	}
	rows := make([]builder.Row, len(items))
	for i, item := range items {
		switch item := item.(type) {
		case builder.Row:
			rows[i] = item
		case map[string]any:
			rows[i] = item
		default:
			return nil, NewQueryArgumentError("upsert row %d must be an object, got %T", i, item)
		}
	}
	return rows, nil
}

func parseColumns(args any) ([]string, error) {
	if args == nil {
		return nil, nil
	}
	items, ok := pkg.AsSlice(args)
	if !ok {
		return nil, NewQueryArgumentError("columns must be an array of strings")
	}
	columns := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, NewQueryArgumentError("column %d must be a non-empty string", i)
		}
		columns[i] = s
	}
	return columns, nil
}

func parseCount(kind string, args any) (int, error) {
	f, ok := pkg.ToFloat(args)
	if !ok || f < 0 || f != float64(int(f)) {
		return 0, NewQueryArgumentError("%s must be a non-negative integer", kind)
	}
	return int(f), nil
}

func parseJoin(args any) (*JoinArgs, error) {
	var raw map[string]any
	switch args := args.(type) {
	case *JoinArgs:
		return checkJoin(args)
	case JoinArgs:
		return checkJoin(&args)
	case map[string]any:
		raw = args
	case builder.Row:
		raw = args
	default:
		return nil, NewQueryArgumentError("join args must be an object")
	}

	j := &JoinArgs{}
	kind, ok := raw["type"].(string)
	if !ok {
		return nil, NewQueryArgumentError("join requires a type")
	}
	j.Type = JoinType(strings.ToLower(kind))
	if j.Table, ok = raw["table"].(string); !ok {
		return nil, NewQueryArgumentError("join requires a table")
	}
	if where, ok := raw["where"]; ok && where != nil {
		c, err := ParseCondition(where)
		if err != nil {
			return nil, err
		}
		j.Where = c
	}
	return checkJoin(j)
}

func checkJoin(j *JoinArgs) (*JoinArgs, error) {
	switch j.Type {
	case JoinLeft, JoinRight, JoinInner, JoinOuter:
		if j.Where == nil {
			return nil, NewQueryArgumentError("%s join requires a where condition", j.Type)
		}
	case JoinCross:
	default:
		return nil, NewQueryArgumentError("Invalid join type: %s", j.Type)
	}
	if j.Table == "" {
		return nil, NewQueryArgumentError("join requires a table")
	}
	return j, nil
}

// Upsert inserts rows, or with a where modifier merges the first row into
// every matched row.
func Upsert(rows ...builder.Row) Modifier {
	return Modifier{Type: string(ActionUpsert), Args: rows}
}

// Select returns the given columns, or whole rows when none are given.
// Columns may be "col AS alias" or "FUNC(args) AS alias".
func Select(columns ...string) Modifier {
	if len(columns) == 0 {
		return Modifier{Type: string(ActionSelect)}
	}
	return Modifier{Type: string(ActionSelect), Args: columns}
}

// Delete removes rows, or with columns nulls only those fields.
func Delete(columns ...string) Modifier {
	if len(columns) == 0 {
		return Modifier{Type: string(ActionDelete)}
	}
	return Modifier{Type: string(ActionDelete), Args: columns}
}

func Drop() Modifier { return Modifier{Type: string(ActionDrop)} }

// Where takes a single triple, Where("age", ">", 25), or a compound one,
// either spread, Where([]any{"a", "=", 1}, "AND", []any{"b", "=", 2}),
// or as one list, Where([]any{[]any{"a", "=", 1}, "AND", []any{"b", "=", 2}}).
func Where(cond ...any) Modifier { return Modifier{Type: ModWhere, Args: unwrapCondition(cond)} }

func Having(cond ...any) Modifier { return Modifier{Type: ModHaving, Args: unwrapCondition(cond)} }

// unwrapCondition turns a compound condition passed as one list back
// into the spread form.
func unwrapCondition(cond []any) any {
	if len(cond) != 1 {
		return cond
	}
	items, ok := pkg.AsSlice(cond[0])
	if !ok || len(items) == 0 {
		return cond
	}
	if _, nested := pkg.AsSlice(items[0]); nested {
		return items
	}
	return cond
}

func Join(kind JoinType, table string, cond ...any) Modifier {
	args := map[string]any{"type": string(kind), "table": table}
	if len(cond) > 0 {
		args["where"] = unwrapCondition(cond)
	}
	return Modifier{Type: ModJoin, Args: args}
}

func GroupBy(keys ...SortKey) Modifier { return Modifier{Type: ModGroupBy, Args: keys} }

func OrderBy(keys ...SortKey) Modifier { return Modifier{Type: ModOrderBy, Args: keys} }

func Offset(n int) Modifier { return Modifier{Type: ModOffset, Args: n} }

func Limit(n int) Modifier { return Modifier{Type: ModLimit, Args: n} }
