package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/internal/history"
	"github.com/tobsdb/tobsql/internal/query"
	"github.com/tobsdb/tobsql/pkg"
)

var ErrNotConnected = errors.New("engine is not connected")

type Options struct {
	builder.Options
	// mirror every change to Adapter and load from it at connect
	Persistent bool
	Adapter    builder.Adapter
	Dispatcher builder.Dispatcher
	Functions  map[string]query.AggregateFunc
	// tables loaded at once while hydrating; 0 loads all of them at once
	HydrateWorkers int
}

// Engine is the in-memory backend: one schema, its query executor and
// its history controller.
type Engine struct {
	locker     sync.RWMutex
	schema     *builder.Schema
	executor   *query.Executor
	history    *history.Controller
	adapter    builder.Adapter
	dispatcher builder.Dispatcher
}

func (e *Engine) GetLocker() *sync.RWMutex { return &e.locker }

func New() *Engine { return &Engine{} }

// Connect builds every table of models, then loads stored rows when the
// engine is persistent. Nothing is kept if either step fails.
func (e *Engine) Connect(ctx context.Context, models []builder.Model, opts Options) error {
	schema, err := builder.NewSchema(models, opts.Options)
	if err != nil {
		return err
	}

	functions := query.NewRegistry()
	for name, fn := range opts.Functions {
		functions.Register(name, fn)
	}

	var adapter builder.Adapter
	if opts.Persistent {
		if opts.Adapter == nil {
			return errors.New("persistent engine needs an adapter")
		}
		adapter = opts.Adapter
		if err := hydrate(ctx, schema, adapter, opts.HydrateWorkers); err != nil {
			return err
		}
	}

	pkg.LockWrap(e, func() {
		e.schema = schema
		e.executor = query.NewExecutor(schema, functions)
		e.history = history.NewController(schema)
		e.adapter = adapter
		e.dispatcher = opts.Dispatcher
	})
	pkg.InfoLog("connected with", schema.Tables.Len(), "tables")
	return nil
}

func (e *Engine) Schema() (s *builder.Schema) {
	pkg.RLockWrap(e, func() { s = e.schema })
	return s
}

// Exec runs one query descriptor. Mutations are mirrored to the adapter
// and reported to the dispatcher once they are applied.
func (e *Engine) Exec(ctx context.Context, table string, mods []query.Modifier) (*query.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var res *query.Result
	err := pkg.LockWrapErr(e, func() (err error) {
		if e.schema == nil {
			return ErrNotConnected
		}
		res, err = e.executor.Exec(table, mods)
		if err != nil || res.Change == nil || res.Change.AffectedCount == 0 {
			return err
		}

		t := e.schema.Tables.Get(table)
		if res.Change.Describe == builder.ChangeDeleted {
			e.mirror(t, nil, res.Change.AffectedRows)
		} else {
			e.mirror(t, res.Change.AffectedRows, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Change != nil && res.Change.AffectedCount > 0 {
		e.dispatch(builder.ChangeEvent{
			Table:       table,
			Change:      res.Change.Describe,
			ChangedRows: res.Change.AffectedRows,
		})
	}
	return res, nil
}

// Extend runs a history command: "<", ">", "?", "flush_history" or "flush_db".
func (e *Engine) Extend(ctx context.Context, command string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result any
	var step *history.Step
	err := pkg.LockWrapErr(e, func() (err error) {
		if e.schema == nil {
			return ErrNotConnected
		}
		cmd, _ := history.ParseCommand(command)
		if cmd == history.CommandFlushDB {
			e.clearAdapter()
		}

		result, step, err = e.history.Exec(command)
		if step != nil {
			e.mirror(e.schema.Tables.Get(step.Event.Table), step.Written, step.Removed)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if step != nil && len(step.Event.ChangedRows) > 0 {
		e.dispatch(step.Event)
	}
	return result, nil
}

func (e *Engine) dispatch(ev builder.ChangeEvent) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.Dispatch(ev)
}
