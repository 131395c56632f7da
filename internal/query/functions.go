package query

import (
	"regexp"
	"strings"
	"sync"

	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

// Call is a parsed "FUNC(args) AS alias" column.
type Call struct {
	Name string
	Args []string
	// output column; the whole expression when no alias is given
	As string
}

// Position is [current index, last index] of a fold.
type Position [2]int

func (p Position) First() bool { return p[0] == 0 }
func (p Position) Last() bool  { return p[0] == p[1] }

// AggregateFunc folds over the rows of a group. It is called once per row
// with the value it returned for the previous row; it must ignore prev at
// the first position and return a row carrying its result under call.As
// at the last one.
type AggregateFunc func(row builder.Row, call *Call, pos Position, prev any) any

type Registry struct {
	locker sync.RWMutex
	funcs  pkg.Map[string, AggregateFunc]
}

func (r *Registry) GetLocker() *sync.RWMutex { return &r.locker }

// NewRegistry returns a registry holding COUNT, SUM, AVG, MIN and MAX.
func NewRegistry() *Registry {
	r := &Registry{funcs: pkg.Map[string, AggregateFunc]{}}
	r.Register("COUNT", countFunc)
	r.Register("SUM", sumFunc)
	r.Register("AVG", avgFunc)
	r.Register("MIN", extremeFunc("MIN", -1))
	r.Register("MAX", extremeFunc("MAX", 1))
	return r
}

func (r *Registry) Register(name string, fn AggregateFunc) {
	pkg.LockWrap(r, func() { r.funcs.Set(strings.ToUpper(name), fn) })
}

func (r *Registry) Get(name string) (fn AggregateFunc, ok bool) {
	pkg.RLockWrap(r, func() { fn, ok = r.funcs[strings.ToUpper(name)] })
	return
}

var (
	call_regex  = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*\((.*)\)\s*$`)
	alias_regex = regexp.MustCompile(`(?i)^\s*(.+?)\s+AS\s+(\S.*?)\s*$`)
)

// ParseColumn splits "expr AS alias". The alias is expr itself when absent.
func ParseColumn(column string) (expr string, alias string) {
	if m := alias_regex.FindStringSubmatch(column); m != nil {
		return m[1], m[2]
	}
	column = strings.TrimSpace(column)
	return column, column
}

// ParseCall reads a function column. ok is false for plain columns.
func ParseCall(column string) (*Call, bool) {
	expr, alias := ParseColumn(column)
	m := call_regex.FindStringSubmatch(expr)
	if m == nil {
		return nil, false
	}

	args := []string{}
	for _, arg := range strings.Split(m[2], ",") {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	return &Call{Name: strings.ToUpper(m[1]), Args: args, As: alias}, true
}

func (c *Call) arg() string {
	if len(c.Args) == 0 {
		return "*"
	}
	return c.Args[0]
}

func finish(row builder.Row, call *Call, value any) builder.Row {
	out := row.Clone()
	if out == nil {
		out = builder.Row{}
	}
	out.Set(call.As, value)
	return out
}

func countFunc(row builder.Row, call *Call, pos Position, prev any) any {
	n := 0
	if !pos.First() {
		n = prev.(int)
	}
	if arg := call.arg(); arg == "*" || Resolve(row, arg) != nil {
		n++
	}
	if pos.Last() {
		return finish(row, call, n)
	}
	return n
}

type sumState struct {
	sum   float64
	whole bool
	n     int
}

func (s sumState) value() any {
	if s.whole {
		return int(s.sum)
	}
	return s.sum
}

func accumulate(row builder.Row, call *Call, pos Position, prev any) sumState {
	s := sumState{whole: true}
	if !pos.First() {
		s = prev.(sumState)
	}
	v := Resolve(row, call.arg())
	if f, ok := pkg.ToFloat(v); ok {
		s.sum += f
		s.n++
		switch v.(type) {
		case float32, float64:
			s.whole = false
		}
	}
	return s
}

func sumFunc(row builder.Row, call *Call, pos Position, prev any) any {
	s := accumulate(row, call, pos, prev)
	if pos.Last() {
		return finish(row, call, s.value())
	}
	return s
}

func avgFunc(row builder.Row, call *Call, pos Position, prev any) any {
	s := accumulate(row, call, pos, prev)
	if pos.Last() {
		if s.n == 0 {
			return finish(row, call, 0.0)
		}
		return finish(row, call, s.sum/float64(s.n))
	}
	return s
}

type extremeState struct {
	row   builder.Row
	value any
}

// extremeFunc keeps the row holding the smallest (dir -1) or largest
// (dir 1) value and marks it with a field named after the function.
func extremeFunc(name string, dir int) AggregateFunc {
	return func(row builder.Row, call *Call, pos Position, prev any) any {
		var s extremeState
		if !pos.First() {
			s = prev.(extremeState)
		}

		v := Resolve(row, call.arg())
		if v != nil && (s.row == nil || pkg.CompareAny(v, s.value)*dir > 0) {
			winner := row.Clone()
			winner.Set(name, v)
			s = extremeState{winner, v}
		}

		if pos.Last() {
			if s.row == nil {
				return finish(row, call, nil)
			}
			return finish(s.row, call, s.value)
		}
		return s
	}
}

// Aggregate runs every call over rows and merges the results into one row.
// The first call's row is the base; later calls add their own fields.
func (r *Registry) Aggregate(rows []builder.Row, calls []*Call) (builder.Row, error) {
	var out builder.Row
	last := len(rows) - 1

	for _, call := range calls {
		fn, ok := r.Get(call.Name)
		if !ok {
			return nil, NewQueryArgumentError("Unknown function %s", call.Name)
		}

		var acc any
		for i, row := range rows {
			acc = fn(row, call, Position{i, last}, acc)
		}

		var res builder.Row
		switch acc := acc.(type) {
		case builder.Row:
			res = acc
		case map[string]any:
			res = builder.Row(acc)
		default:
			res = builder.Row{call.As: acc}
		}

		if out == nil {
			out = res.Clone()
			continue
		}
		out.Set(call.As, res.Get(call.As))
		for k, v := range res {
			if !out.Has(k) {
				out.Set(k, v)
			}
		}
	}
	return out, nil
}
