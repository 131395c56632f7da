package history_test

import (
	"errors"
	"testing"

	"github.com/tobsdb/tobsql/internal/builder"
	. "github.com/tobsdb/tobsql/internal/history"
	"github.com/tobsdb/tobsql/internal/query"
	"gotest.tools/assert"
)

const testSchema = `
$TABLE users {
    id Int key(primary) ai(true)
    name String
}
`

func setup(t *testing.T, opts builder.Options) (*query.Executor, *Controller) {
	s, err := builder.NewSchemaFromString(testSchema, opts)
	assert.NilError(t, err)
	return query.NewExecutor(s, nil), NewController(s)
}

func exec(t *testing.T, e *query.Executor, mods ...query.Modifier) []builder.Row {
	t.Helper()
	res, err := e.Exec("users", mods)
	assert.NilError(t, err)
	return res.Rows
}

func selectAll(t *testing.T, e *query.Executor) []builder.Row {
	return exec(t, e, query.Select())
}

func TestUndoRedo(t *testing.T) {
	e, c := setup(t, builder.DefaultOptions())

	exec(t, e, query.Upsert(builder.Row{"name": "a"}))
	before := selectAll(t, e)
	exec(t, e, query.Upsert(builder.Row{"name": "b"}), query.Where("id", "=", 1))
	after := selectAll(t, e)

	step, ok := c.Undo()
	assert.Assert(t, ok)
	assert.Equal(t, step.Event.Change, builder.ChangeModified)
	assert.DeepEqual(t, selectAll(t, e), before)
	assert.DeepEqual(t, c.Status(), []int{2, 1})

	step, ok = c.Redo()
	assert.Assert(t, ok)
	assert.DeepEqual(t, step.Event.ChangedRows, after)
	assert.DeepEqual(t, selectAll(t, e), after)
	assert.DeepEqual(t, c.Status(), []int{2, 0})
}

func TestUndoInsertReportsDelete(t *testing.T) {
	e, c := setup(t, builder.DefaultOptions())
	exec(t, e, query.Upsert(builder.Row{"name": "a"}))

	step, ok := c.Undo()
	assert.Assert(t, ok)
	assert.Equal(t, step.Event.Change, builder.ChangeDeleted)
	assert.Equal(t, len(step.Removed), 1)
	assert.Equal(t, len(selectAll(t, e)), 0)

	_, ok = c.Undo()
	assert.Assert(t, !ok)

	step, ok = c.Redo()
	assert.Assert(t, ok)
	assert.Equal(t, step.Event.Change, builder.ChangeInserted)
	assert.Equal(t, len(step.Written), 1)

	_, ok = c.Redo()
	assert.Assert(t, !ok)
}

func TestWriteAfterUndoPrunesFuture(t *testing.T) {
	e, c := setup(t, builder.DefaultOptions())
	exec(t, e, query.Upsert(builder.Row{"name": "a"}))
	exec(t, e, query.Upsert(builder.Row{"name": "b"}))

	_, ok := c.Undo()
	assert.Assert(t, ok)
	exec(t, e, query.Upsert(builder.Row{"name": "c"}), query.Where("id", "=", 1))

	assert.DeepEqual(t, c.Status(), []int{2, 0})
	_, ok = c.Redo()
	assert.Assert(t, !ok)
	assert.DeepEqual(t, selectAll(t, e), []builder.Row{{"id": 1, "name": "c"}})

	_, ok = c.Undo()
	assert.Assert(t, ok)
	assert.DeepEqual(t, selectAll(t, e), []builder.Row{{"id": 1, "name": "a"}})
}

func TestReinsertAfterUndo(t *testing.T) {
	e, c := setup(t, builder.DefaultOptions())
	exec(t, e, query.Upsert(builder.Row{"id": 1, "name": "a"}))
	_, ok := c.Undo()
	assert.Assert(t, ok)

	exec(t, e, query.Upsert(builder.Row{"id": 1, "name": "b"}))
	assert.DeepEqual(t, selectAll(t, e), []builder.Row{{"id": 1, "name": "b"}})

	_, ok = c.Undo()
	assert.Assert(t, ok)
	assert.Equal(t, len(selectAll(t, e)), 0)
}

func TestUndoDrop(t *testing.T) {
	e, c := setup(t, builder.DefaultOptions())
	exec(t, e, query.Upsert(builder.Row{"name": "a"}, builder.Row{"name": "b"}))
	rows := selectAll(t, e)

	exec(t, e, query.Drop())
	_, ok := c.Undo()
	assert.Assert(t, ok)
	assert.DeepEqual(t, selectAll(t, e), rows)

	inserted := exec(t, e, query.Upsert(builder.Row{"name": "c"}))
	assert.Equal(t, inserted[0].Get("id"), 3)
}

func TestUndoInvalidatesCache(t *testing.T) {
	e, c := setup(t, builder.DefaultOptions())
	exec(t, e, query.Upsert(builder.Row{"name": "a"}))
	assert.Equal(t, len(selectAll(t, e)), 1)

	_, ok := c.Undo()
	assert.Assert(t, ok)
	assert.Equal(t, len(selectAll(t, e)), 0)
}

func TestHistoryDisabled(t *testing.T) {
	e, c := setup(t, builder.Options{Memory: true})
	exec(t, e, query.Upsert(builder.Row{"name": "a"}))

	_, ok := c.Undo()
	assert.Assert(t, !ok)
	assert.DeepEqual(t, c.Status(), []int{0, 0})
	assert.Equal(t, len(selectAll(t, e)), 1)
}

func TestExec(t *testing.T) {
	e, c := setup(t, builder.DefaultOptions())
	exec(t, e, query.Upsert(builder.Row{"name": "a"}))
	exec(t, e, query.Upsert(builder.Row{"name": "b"}), query.Where("id", "=", 1))

	result, _, err := c.Exec("?")
	assert.NilError(t, err)
	assert.DeepEqual(t, result, []int{2, 0})

	result, step, err := c.Exec("<")
	assert.NilError(t, err)
	assert.Equal(t, result, true)
	assert.Assert(t, step != nil)

	result, _, err = c.Exec("flush_history")
	assert.NilError(t, err)
	assert.Equal(t, result, true)
	assert.DeepEqual(t, c.Status(), []int{0, 0})
	assert.DeepEqual(t, selectAll(t, e), []builder.Row{{"id": 1, "name": "a"}})

	result, _, err = c.Exec(">")
	assert.NilError(t, err)
	assert.Equal(t, result, false)

	_, _, err = c.Exec("FLUSH_DB")
	assert.NilError(t, err)
	assert.Equal(t, len(selectAll(t, e)), 0)
	inserted := exec(t, e, query.Upsert(builder.Row{"name": "z"}))
	assert.Equal(t, inserted[0].Get("id"), 1)

	_, _, err = c.Exec("rewind")
	assert.Assert(t, errors.Is(err, query.ErrQueryArgument))
}
