package builder

import (
	"errors"
	"fmt"

	"github.com/tobsdb/tobsql/internal/types"
	"github.com/tobsdb/tobsql/pkg"
	sorted "github.com/tobshub/go-sortedmap"
)

var ErrMissingPrimaryKey = errors.New("missing primary key")

type Table struct {
	Name    string
	Columns *pkg.InsertSortMap[string, *Column]
	Pk      string
	PkType  types.ColumnType
	// next value handed out to an Int primary key
	AutoIncrement int

	Rows *RowStore
	// ids of the rows whose current version is not nil, in id order
	RowIndex *sorted.SortedMap[RowID, RowID]
	// formatted primary key -> row id, kept for deleted rows too
	PkIndex pkg.Map[string, RowID]
	Indexes pkg.Map[string, *Index]
	Cache   *QueryCache

	Schema *Schema
}

func newRowIndex() *sorted.SortedMap[RowID, RowID] {
	return sorted.New[RowID, RowID](0, func(a, b RowID) bool { return a < b })
}

// NewTable builds a table from its column models.
func NewTable(name string, columns []*Column, opts Options) (*Table, error) {
	if len(columns) == 0 {
		return nil, NewSchemaError(name, "table has no columns")
	}

	t := &Table{
		Name:          name,
		Columns:       pkg.NewInsertSortMap[string, *Column](),
		AutoIncrement: 1,
		Rows:          NewRowStore(opts.History),
		RowIndex:      newRowIndex(),
		PkIndex:       pkg.Map[string, RowID]{},
		Indexes:       pkg.Map[string, *Index]{},
	}
	if opts.Memory {
		t.Cache = NewQueryCache(opts.CacheSize)
	}

	for _, c := range columns {
		c := c.clone()
		if err := CheckColumnRules(name, c); err != nil {
			return nil, err
		}
		if t.Columns.Has(c.Key) {
			return nil, NewSchemaError(name, fmt.Sprintf("Duplicate field %s", c.Key))
		}
		if c.IsPrimary() {
			if t.Pk != "" {
				return nil, NewSchemaError(name, "Table can't have multiple primary keys")
			}
			t.Pk, t.PkType = c.Key, c.Type
		}
		if c.IsIndexed() && !c.IsPrimary() {
			t.Indexes.Set(c.Key, NewIndex(c.Key))
		}
		t.Columns.Push(c.Key, c)
	}

	if t.Pk == "" {
		return nil, NewSchemaError(name, "Table has no primary key")
	}
	return t, nil
}

func (t *Table) Column(key string) *Column { return t.Columns.Get(key) }

func (t *Table) PrimaryKey() *Column { return t.Columns.Get(t.Pk) }

func formatPk(v any) string {
	return fmt.Sprintf("%v", v)
}

// NextPk resolves the primary key of a new row. A supplied Int key moves
// the counter past it; a missing one takes the counter. Uuid keys are
// generated, any other missing key is an error.
func (t *Table) NextPk(supplied any) (any, error) {
	if supplied != nil {
		pk := t.PkType.Cast(supplied)
		if t.PkType.Builtin == types.FieldTypeInt {
			t.AutoIncrement = max(t.AutoIncrement, pk.(int)+1)
		}
		return pk, nil
	}

	switch t.PkType.Builtin {
	case types.FieldTypeInt:
		pk := t.AutoIncrement
		t.AutoIncrement++
		return pk, nil
	case types.FieldTypeUuid:
		return types.NewUuid(), nil
	}
	return nil, ErrMissingPrimaryKey
}

// LookupPk finds the slot that holds, or once held, pk.
func (t *Table) LookupPk(pk any) (RowID, bool) {
	id, ok := t.PkIndex[formatPk(t.PkType.Cast(pk))]
	return id, ok
}

func (t *Table) Row(id RowID) Row { return t.Rows.Current(id) }

func (t *Table) IsLive(id RowID) bool { return t.RowIndex.Has(id) }

func (t *Table) Len() int { return t.RowIndex.Len() }

// LiveIds returns the ids of present rows in id order.
func (t *Table) LiveIds() []RowID {
	ids := make([]RowID, 0, t.RowIndex.Len())
	if t.RowIndex.Len() == 0 {
		return ids
	}
	iterCh, err := t.RowIndex.IterCh()
	if err != nil {
		return ids
	}
	for rec := range iterCh.Records() {
		ids = append(ids, rec.Key)
	}
	return ids
}

// Reindex moves row id's index membership from old to row. Either may be nil.
func (t *Table) Reindex(id RowID, old, row Row) {
	if old != nil {
		for col, idx := range t.Indexes {
			idx.Delete(old.Get(col), id)
		}
	}

	if row == nil {
		t.RowIndex.Delete(id)
		return
	}

	if !t.RowIndex.Has(id) {
		t.RowIndex.Insert(id, id)
	}
	pk := row.Get(t.Pk)
	t.PkIndex.Set(formatPk(pk), id)
	if t.PkType.Builtin == types.FieldTypeInt && pk != nil {
		t.AutoIncrement = max(t.AutoIncrement, pkg.NumToInt(pk)+1)
	}
	for col, idx := range t.Indexes {
		idx.Insert(row.Get(col), id)
	}
}

// Invalidate forgets every cached result of the table.
func (t *Table) Invalidate() {
	t.Cache.Invalidate()
}

// Reset discards every row slot and counter of the table.
func (t *Table) Reset() {
	t.Rows.Reset()
	t.RowIndex = newRowIndex()
	t.PkIndex = pkg.Map[string, RowID]{}
	for _, idx := range t.Indexes {
		idx.Clear()
	}
	t.AutoIncrement = 1
	t.Invalidate()
}
