package tobsql

import (
	"context"
	"errors"
	"sync"

	"github.com/tobsdb/tobsql/pkg"
)

var ErrClosed = errors.New("database is closed")

type job struct {
	ctx context.Context
	run func(ctx context.Context)
}

// DB is a handle to one database. Queries run one at a time in the order
// they were submitted; a query runs to completion once it has started.
type DB struct {
	locker  sync.RWMutex
	backend Backend
	queue   chan job
	closed  bool
	done    chan struct{}
}

func (db *DB) GetLocker() *sync.RWMutex { return &db.locker }

// Connect opens an in-memory database with the given tables. cfg is
// usually DefaultConfig with changes; a zero Config disables history and
// the query cache.
func Connect(ctx context.Context, models map[string][]*Column, cfg Config) (*DB, error) {
	return ConnectBackend(ctx, NewMemoryBackend(), ModelsFromMap(models), cfg)
}

// ConnectSchema opens an in-memory database from the schema language:
//
//	$TABLE users {
//	    id Int key(primary) ai(true)
//	    name String default("anon")
//	}
func ConnectSchema(ctx context.Context, schema string, cfg Config) (*DB, error) {
	models, err := ParseSchema(schema)
	if err != nil {
		return nil, err
	}
	return ConnectBackend(ctx, NewMemoryBackend(), models, cfg)
}

func ConnectBackend(ctx context.Context, backend Backend, models []Model, cfg Config) (*DB, error) {
	pkg.SetLogLevel(pkg.LevelFor(cfg.Log.Should_log, cfg.Log.Show_debug_logs))
	if err := backend.Connect(ctx, models, cfg); err != nil {
		pkg.ErrorLog("failed to connect;", err)
		return nil, err
	}

	queue_size := cfg.QueueSize
	if queue_size < 0 {
		queue_size = 0
	}
	db := &DB{backend: backend, queue: make(chan job, queue_size), done: make(chan struct{})}
	go db.work()
	return db, nil
}

func (db *DB) work() {
	defer close(db.done)
	for j := range db.queue {
		j.run(j.ctx)
	}
}

// submit queues fn and waits for it to finish. A query whose context ends
// before it starts is skipped.
func (db *DB) submit(ctx context.Context, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	j := job{ctx, func(ctx context.Context) {
		defer close(finished)
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}}

	err := pkg.RLockWrapErr(db, func() error {
		if db.closed {
			return ErrClosed
		}
		select {
		case db.queue <- j:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return err
	}

	<-finished
	return ctx.Err()
}

// Execute runs one query on table.
func (db *DB) Execute(ctx context.Context, table string, mods ...Modifier) (*Result, error) {
	var res *Result
	var exec_err error
	err := db.submit(ctx, func(ctx context.Context) {
		res, exec_err = db.backend.Exec(ctx, table, mods)
	})
	if exec_err != nil {
		return nil, exec_err
	}
	if res == nil && err != nil {
		return nil, err
	}
	return res, nil
}

// Extend runs a backend command. For the in-memory backend:
//
//	"<"             undo the last change, false when there is none
//	">"             redo the last undone change, false when there is none
//	"?"             []int{history length, undone records}
//	"flush_history" forget every past version
//	"flush_db"      delete every row of every table
func (db *DB) Extend(ctx context.Context, command string, args ...any) (any, error) {
	var res any
	var ext_err error
	err := db.submit(ctx, func(ctx context.Context) {
		res, ext_err = db.backend.Extend(ctx, command, args...)
	})
	if ext_err != nil {
		return nil, ext_err
	}
	if res == nil && err != nil {
		return nil, err
	}
	return res, nil
}

// Close waits for the queued queries and stops the worker.
func (db *DB) Close() error {
	pkg.LockWrap(db, func() {
		if db.closed {
			return
		}
		db.closed = true
		close(db.queue)
	})
	<-db.done
	return nil
}
