package history

import (
	"fmt"
	"strings"

	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/internal/query"
	"github.com/tobsdb/tobsql/pkg"
)

type Command string

const (
	CommandUndo         Command = "<"
	CommandRedo         Command = ">"
	CommandStatus       Command = "?"
	CommandFlushDB      Command = "flush_db"
	CommandFlushHistory Command = "flush_history"
)

func ParseCommand(raw string) (Command, bool) {
	cmd := Command(strings.ToLower(strings.TrimSpace(raw)))
	switch cmd {
	case CommandUndo, CommandRedo, CommandStatus, CommandFlushDB, CommandFlushHistory:
		return cmd, true
	}
	return "", false
}

// Step is the outcome of one undo or redo.
type Step struct {
	Event builder.ChangeEvent
	// versions that became current, and versions that stopped existing
	Written []builder.Row
	Removed []builder.Row
}

// Controller moves the database along its history. Callers hold the
// schema lock.
type Controller struct {
	Schema *builder.Schema
}

func NewController(schema *builder.Schema) *Controller {
	return &Controller{Schema: schema}
}

// Undo steps back over the newest applied record. It reports false when
// there is nothing left to undo.
func (c *Controller) Undo() (*Step, bool) {
	h := c.Schema.History
	if !c.Schema.Options.History || h.Point >= h.Len() {
		return nil, false
	}
	rec := h.Records[h.Point]
	h.Point++
	pkg.DebugLog("undo", rec.Change, "on", rec.Table, "point:", h.Point)
	return c.shift(rec, 1, rec.Change.Reverse()), true
}

// Redo reapplies the oldest undone record.
func (c *Controller) Redo() (*Step, bool) {
	h := c.Schema.History
	if !c.Schema.Options.History || h.Point == 0 {
		return nil, false
	}
	h.Point--
	rec := h.Records[h.Point]
	pkg.DebugLog("redo", rec.Change, "on", rec.Table, "point:", h.Point)
	return c.shift(rec, -1, rec.Change), true
}

func (c *Controller) shift(rec builder.HistoryRecord, delta int, change builder.ChangeType) *Step {
	step := &Step{Event: builder.ChangeEvent{Table: rec.Table, Change: change, ChangedRows: []builder.Row{}}}
	t := c.Schema.Tables.Get(rec.Table)
	if t == nil {
		return step
	}

	for _, id := range rec.RowIds {
		old := t.Row(id)
		t.Rows.ShiftPointer(id, delta)
		row := t.Row(id)
		t.Reindex(id, old, row)

		if row != nil {
			step.Written = append(step.Written, row.Clone())
			step.Event.ChangedRows = append(step.Event.ChangedRows, row.Clone())
		} else if old != nil {
			step.Removed = append(step.Removed, old.Clone())
			step.Event.ChangedRows = append(step.Event.ChangedRows, old.Clone())
		}
	}
	t.Invalidate()
	return step
}

// Status is [number of records, how many of them are undone].
func (c *Controller) Status() []int {
	return []int{c.Schema.History.Len(), c.Schema.History.Point}
}

func (c *Controller) FlushHistory() {
	c.Schema.FlushHistory()
}

func (c *Controller) FlushDB() {
	c.Schema.FlushData()
}

// Exec runs one history command. Undo and redo return true with the step
// taken, or false when there was nothing to do.
func (c *Controller) Exec(command string) (result any, step *Step, err error) {
	cmd, ok := ParseCommand(command)
	if !ok {
		return nil, nil, query.NewQueryArgumentError("Invalid command: %s", command)
	}

	switch cmd {
	case CommandUndo:
		step, ok = c.Undo()
		return ok, step, nil
	case CommandRedo:
		step, ok = c.Redo()
		return ok, step, nil
	case CommandStatus:
		return c.Status(), nil, nil
	case CommandFlushHistory:
		c.FlushHistory()
		return true, nil, nil
	case CommandFlushDB:
		c.FlushDB()
		return true, nil, nil
	}
	panic(fmt.Sprintf("unhandled history command %q", cmd))
}
