package tobsql

import (
	"github.com/tobsdb/tobsql/internal/builder"
)

type LogOptions struct {
	Should_log      bool `mapstructure:"should_log"`
	Show_debug_logs bool `mapstructure:"show_debug_logs"`
}

// Config holds the connect-time options of a database. Start from
// DefaultConfig: the zero Config turns history and the query cache off.
type Config struct {
	// mirror every change to Adapter and load stored rows at connect
	Persistent bool `mapstructure:"persistent"`
	// keep row versions for undo and redo
	History bool `mapstructure:"history"`
	// cache select results and joined rows
	Memory bool `mapstructure:"memory"`
	// query cache entries per table
	Size int `mapstructure:"size"`
	// directory of the built-in page log, used when Persistent is set
	// without an Adapter
	Path string `mapstructure:"path"`
	// queries that may wait behind the running one
	QueueSize int        `mapstructure:"queue_size"`
	Log       LogOptions `mapstructure:"log"`

	Adapter    Adapter                  `mapstructure:"-"`
	Dispatcher Dispatcher               `mapstructure:"-"`
	Functions  map[string]AggregateFunc `mapstructure:"-"`
}

const (
	DefaultPath      = "tobsql_data"
	DefaultQueueSize = 64
)

// DefaultConfig keeps history and caches up to DefaultCacheSize select
// results per table. Nothing is persisted.
func DefaultConfig() Config {
	return Config{
		History:   true,
		Memory:    true,
		Size:      builder.DefaultCacheSize,
		Path:      DefaultPath,
		QueueSize: DefaultQueueSize,
		Log:       LogOptions{Should_log: true},
	}
}

func (c Config) options() builder.Options {
	return builder.Options{History: c.History, Memory: c.Memory, CacheSize: c.Size}
}
