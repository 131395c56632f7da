package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tobsdb/tobsql/internal/builder"
	. "github.com/tobsdb/tobsql/internal/engine"
	"github.com/tobsdb/tobsql/internal/paging"
	"github.com/tobsdb/tobsql/internal/query"
	"github.com/tobsdb/tobsql/internal/types"
	"gotest.tools/assert"
)

const testSchema = `
$TABLE users {
    id Int key(primary) ai(true)
    name String
    age Int
}

$TABLE posts {
    id Uuid key(primary)
    title String
}
`

func models(t *testing.T) []builder.Model {
	m, err := builder.ParseSchema(testSchema)
	assert.NilError(t, err)
	return m
}

func connect(t *testing.T, opts Options) *Engine {
	e := New()
	assert.NilError(t, e.Connect(context.Background(), models(t), opts))
	return e
}

func exec(t *testing.T, e *Engine, table string, mods ...query.Modifier) *query.Result {
	t.Helper()
	res, err := e.Exec(context.Background(), table, mods)
	assert.NilError(t, err)
	return res
}

func extend(t *testing.T, e *Engine, command string) any {
	t.Helper()
	res, err := e.Extend(context.Background(), command)
	assert.NilError(t, err)
	return res
}

func TestConnectErrors(t *testing.T) {
	e := New()
	_, err := e.Exec(context.Background(), "users", []query.Modifier{query.Select()})
	assert.Assert(t, errors.Is(err, ErrNotConnected))
	_, err = e.Extend(context.Background(), "?")
	assert.Assert(t, errors.Is(err, ErrNotConnected))

	bad := []builder.Model{{Name: "a", Columns: []*builder.Column{builder.NewColumn("name", types.String, nil)}}}
	err = e.Connect(context.Background(), bad, Options{Options: builder.DefaultOptions()})
	assert.Assert(t, errors.Is(err, builder.ErrSchema))
	assert.Assert(t, e.Schema() == nil)

	err = e.Connect(context.Background(), models(t), Options{Options: builder.DefaultOptions(), Persistent: true})
	assert.ErrorContains(t, err, "needs an adapter")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e = connect(t, Options{Options: builder.DefaultOptions()})
	_, err = e.Exec(ctx, "users", []query.Modifier{query.Select()})
	assert.Assert(t, errors.Is(err, context.Canceled))
}

func TestEvents(t *testing.T) {
	events := []builder.ChangeEvent{}
	e := connect(t, Options{
		Options:    builder.DefaultOptions(),
		Dispatcher: builder.DispatcherFunc(func(ev builder.ChangeEvent) { events = append(events, ev) }),
	})

	exec(t, e, "users", query.Upsert(builder.Row{"name": "a"}))
	exec(t, e, "users", query.Select())
	exec(t, e, "users", query.Delete(), query.Where("name", "=", "nobody"))
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].Table, "users")
	assert.Equal(t, events[0].Change, builder.ChangeInserted)

	assert.Equal(t, extend(t, e, "<"), true)
	assert.Equal(t, events[1].Change, builder.ChangeDeleted)
	assert.DeepEqual(t, events[1].ChangedRows, []builder.Row{{"id": 1, "name": "a"}})

	assert.Equal(t, extend(t, e, ">"), true)
	assert.Equal(t, events[2].Change, builder.ChangeInserted)

	assert.Equal(t, extend(t, e, ">"), false)
	assert.Equal(t, len(events), 3)
	assert.DeepEqual(t, extend(t, e, "?"), []int{1, 0})
}

func TestFunctions(t *testing.T) {
	e := connect(t, Options{
		Options: builder.DefaultOptions(),
		Functions: map[string]query.AggregateFunc{
			"names": func(row builder.Row, call *query.Call, pos query.Position, prev any) any {
				n := ""
				if !pos.First() {
					n = prev.(string) + ","
				}
				n += row.Get("name").(string)
				if pos.Last() {
					return builder.Row{call.As: n}
				}
				return n
			},
		},
	})
	exec(t, e, "users", query.Upsert(builder.Row{"name": "a"}, builder.Row{"name": "b"}))
	rows := exec(t, e, "users", query.Select("NAMES(name) AS all")).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"all": "a,b"}})
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	store, err := paging.Open(dir)
	assert.NilError(t, err)
	opts := Options{Options: builder.DefaultOptions(), Persistent: true, Adapter: store}

	e := connect(t, opts)
	exec(t, e, "users", query.Upsert(
		builder.Row{"name": "a", "age": 20},
		builder.Row{"name": "b", "age": 30},
		builder.Row{"name": "c", "age": 40},
	))
	exec(t, e, "users", query.Upsert(builder.Row{"age": 21}), query.Where("name", "=", "a"))
	exec(t, e, "users", query.Delete(), query.Where("name", "=", "b"))
	post := exec(t, e, "posts", query.Upsert(builder.Row{"title": "hello"})).Rows[0]

	exec(t, e, "users", query.Upsert(builder.Row{"name": "d"}))
	extend(t, e, "<")

	reopened, err := paging.Open(dir)
	assert.NilError(t, err)
	e = connect(t, Options{Options: builder.DefaultOptions(), Persistent: true, Adapter: reopened, HydrateWorkers: 1})

	rows := exec(t, e, "users", query.Select()).Rows
	assert.DeepEqual(t, rows, []builder.Row{
		{"id": 1, "name": "a", "age": 21},
		{"id": 3, "name": "c", "age": 40},
	})
	assert.DeepEqual(t, exec(t, e, "posts", query.Select()).Rows, []builder.Row{post})
	assert.DeepEqual(t, extend(t, e, "?"), []int{0, 0})

	inserted := exec(t, e, "users", query.Upsert(builder.Row{"name": "e"})).Rows[0]
	assert.Equal(t, inserted.Get("id"), 4)

	extend(t, e, "flush_db")
	var pks []any
	reopened.GetIndex("users", func(index []any, err error) {
		assert.NilError(t, err)
		pks = index
	})
	assert.Equal(t, len(pks), 0)
}

type failingAdapter struct{ *paging.Store }

func (failingAdapter) GetIndex(table string, done func([]any, error)) {
	done(nil, errors.New("disk on fire"))
}

func TestHydrationFailure(t *testing.T) {
	store, err := paging.Open(t.TempDir())
	assert.NilError(t, err)

	e := New()
	err = e.Connect(context.Background(), models(t), Options{
		Options:    builder.DefaultOptions(),
		Persistent: true,
		Adapter:    &failingAdapter{store},
	})
	assert.ErrorContains(t, err, "disk on fire")
	assert.Assert(t, e.Schema() == nil)
}
