package tobsql

import (
	"context"

	"github.com/tobsdb/tobsql/internal/engine"
	"github.com/tobsdb/tobsql/internal/paging"
)

// Backend is a storage engine a DB runs its queries on.
type Backend interface {
	// Connect creates the tables of models before any query runs.
	Connect(ctx context.Context, models []Model, cfg Config) error
	Exec(ctx context.Context, table string, mods []Modifier) (*Result, error)
	// Extend runs a vendor command such as the history commands "<", ">",
	// "?", "flush_history" and "flush_db".
	Extend(ctx context.Context, command string, args ...any) (any, error)
}

// MemoryBackend keeps every table in memory, optionally mirrored to an
// Adapter.
type MemoryBackend struct {
	*engine.Engine
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{engine.New()}
}

func (b *MemoryBackend) Connect(ctx context.Context, models []Model, cfg Config) error {
	adapter := cfg.Adapter
	if cfg.Persistent && adapter == nil {
		store, err := paging.Open(cfg.Path)
		if err != nil {
			return err
		}
		adapter = store
	}

	return b.Engine.Connect(ctx, models, engine.Options{
		Options:    cfg.options(),
		Persistent: cfg.Persistent,
		Adapter:    adapter,
		Dispatcher: cfg.Dispatcher,
		Functions:  cfg.Functions,
	})
}

var _ Backend = (*MemoryBackend)(nil)
