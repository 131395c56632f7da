package builder

import (
	"maps"
	"slices"
	"sync"

	"github.com/tobsdb/tobsql/pkg"
)

// Options are the per-database switches set at connect.
type Options struct {
	// keep row versions and history records for undo/redo
	History bool
	// memoize selects and join rows
	Memory bool
	// query cache capacity per table
	CacheSize int
}

func DefaultOptions() Options {
	return Options{History: true, Memory: true, CacheSize: DefaultCacheSize}
}

type Model struct {
	Name    string
	Columns []*Column
}

// ModelsFromMap orders a table -> columns map by table name.
func ModelsFromMap(m map[string][]*Column) []Model {
	models := make([]Model, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		models = append(models, Model{Name: name, Columns: m[name]})
	}
	return models
}

// HistoryRecord is one successful mutation.
type HistoryRecord struct {
	Table  string
	RowIds []RowID
	Change ChangeType
}

// HistoryLog keeps records newest first. Point is how many records the
// database is behind the newest one.
type HistoryLog struct {
	Records []HistoryRecord
	Point   int
}

func (h *HistoryLog) Len() int { return len(h.Records) }

// Schema is one database: its tables, their shared history and the join memo.
type Schema struct {
	locker  sync.RWMutex
	Tables  *pkg.InsertSortMap[string, *Table]
	History *HistoryLog
	Joins   *JoinIndex
	Options Options
}

func (s *Schema) GetLocker() *sync.RWMutex { return &s.locker }

// NewSchema creates every table of models or none of them.
func NewSchema(models []Model, opts Options) (*Schema, error) {
	s := &Schema{
		Tables:  pkg.NewInsertSortMap[string, *Table](),
		History: &HistoryLog{},
		Options: opts,
	}
	if opts.Memory {
		s.Joins = NewJoinIndex(DefaultJoinMemoSize)
	}

	for _, m := range models {
		if m.Name == "" {
			return nil, NewSchemaError("", "table without a name")
		}
		if s.Tables.Has(m.Name) {
			return nil, NewSchemaError(m.Name, "Duplicate table "+m.Name)
		}
		t, err := NewTable(m.Name, m.Columns, opts)
		if err != nil {
			return nil, err
		}
		t.Schema = s
		s.Tables.Push(t.Name, t)
	}
	return s, nil
}

func NewSchemaFromString(data string, opts Options) (*Schema, error) {
	models, err := ParseSchema(data)
	if err != nil {
		return nil, err
	}
	return NewSchema(models, opts)
}

// BeginWrite prunes the undone records so history stays linear. It must
// run before any new version is appended.
func (s *Schema) BeginWrite() {
	h := s.History
	if h.Point == 0 {
		return
	}
	for _, rec := range h.Records[:h.Point] {
		t := s.Tables.Get(rec.Table)
		if t == nil {
			continue
		}
		for _, id := range rec.RowIds {
			if id < t.Rows.Len() {
				t.Rows.Truncate(id)
			}
		}
	}
	h.Records = slices.Clone(h.Records[h.Point:])
	h.Point = 0
}

// Record pushes rec as the newest history record.
func (s *Schema) Record(rec HistoryRecord) {
	if !s.Options.History {
		return
	}
	s.History.Records = append([]HistoryRecord{rec}, s.History.Records...)
}

// FlushHistory keeps only the current version of every row.
func (s *Schema) FlushHistory() {
	for _, t := range s.Tables.Values() {
		for id := 0; id < t.Rows.Len(); id++ {
			t.Rows.Compact(id)
		}
	}
	s.History.Records = nil
	s.History.Point = 0
}

// FlushData drops every row of every table along with the history.
func (s *Schema) FlushData() {
	for _, t := range s.Tables.Values() {
		t.Reset()
	}
	s.History.Records = nil
	s.History.Point = 0
	s.Joins.Purge()
}
