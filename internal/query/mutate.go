package query

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tobsdb/tobsql/internal/builder"
)

// write is one row version waiting to be committed. id is -1 for a slot
// that does not exist yet.
type write struct {
	id  builder.RowID
	old builder.Row
	row builder.Row
}

// commit appends every pending version, then records the batch as one
// history entry. Nothing is written before all versions are computed.
func (e *Executor) commit(t *builder.Table, writes []*write, change builder.ChangeType) *Change {
	ch := &Change{Describe: change, AffectedRows: []builder.Row{}}
	if len(writes) == 0 {
		return ch
	}

	e.Schema.BeginWrite()
	ids := make([]builder.RowID, len(writes))
	for i, w := range writes {
		if w.id < 0 {
			w.id = t.Rows.Allocate()
		}
		t.Rows.AppendVersion(w.id, w.row)
		t.Reindex(w.id, w.old, w.row)
		ids[i] = w.id

		if w.row != nil {
			ch.AffectedRows = append(ch.AffectedRows, w.row.Clone())
		} else {
			ch.AffectedRows = append(ch.AffectedRows, w.old.Clone())
		}
	}
	ch.AffectedCount = len(writes)

	e.Schema.Record(builder.HistoryRecord{Table: t.Name, RowIds: ids, Change: change})
	t.Invalidate()
	return ch
}

// castField coerces a written value to its column. Unknown fields are
// an argument error.
func castField(t *builder.Table, key string, v any) (any, error) {
	c := t.Column(key)
	if c == nil {
		return nil, NewQueryArgumentError("Field %s does not exist in table %s", key, t.Name)
	}
	return c.Type.Cast(v), nil
}

// merge applies data over a copy of old. The primary key cannot change.
func merge(t *builder.Table, old, data builder.Row) (builder.Row, error) {
	row := old.Clone()
	if row == nil {
		row = builder.Row{}
	}
	for key, v := range data {
		value, err := castField(t, key, v)
		if err != nil {
			return nil, err
		}
		if key == t.Pk {
			if row.Has(key) && fmt.Sprint(value) != fmt.Sprint(row.Get(key)) {
				return nil, NewQueryArgumentError("cannot change primary key %s of table %s", key, t.Name)
			}
		}
		row.Set(key, value)
	}
	return row, nil
}

// fresh builds a new row from data, filling defaults for unset columns.
func fresh(t *builder.Table, pk any, data builder.Row) (builder.Row, error) {
	row := builder.Row{}
	for _, c := range t.Columns.Values() {
		if c.HasDefault() {
			row.Set(c.Key, c.Default)
		}
	}
	row, err := merge(t, row, data)
	if err != nil {
		return nil, err
	}
	row.Set(t.Pk, pk)
	return row, nil
}

func (e *Executor) upsert(t *builder.Table, p *Plan) (*Change, error) {
	if p.Where != nil {
		return e.update(t, p)
	}

	counter := t.AutoIncrement
	writes, err := e.insertions(t, p.Data)
	if err != nil {
		t.AutoIncrement = counter
		return nil, err
	}

	change := builder.ChangeInserted
	for _, w := range writes {
		if w.old != nil {
			change = builder.ChangeModified
		}
	}
	return e.commit(t, writes, change), nil
}

// insertions resolves the primary key of every row. Rows whose key is
// already live are merged into it, as are repeated keys within the batch.
func (e *Executor) insertions(t *builder.Table, data []builder.Row) ([]*write, error) {
	writes := []*write{}
	pending := map[string]*write{}

	for i, item := range data {
		pk, err := t.NextPk(item.Get(t.Pk))
		if errors.Is(err, builder.ErrMissingPrimaryKey) {
			return nil, NewQueryArgumentError("row %d is missing primary key %s", i, t.Pk)
		} else if err != nil {
			return nil, err
		}

		key := fmt.Sprint(pk)
		if w, ok := pending[key]; ok {
			if w.row, err = merge(t, w.row, item); err != nil {
				return nil, err
			}
			continue
		}

		w := &write{id: -1}
		id, known := t.LookupPk(pk)
		if known {
			w.id = id
		}
		if known && t.IsLive(id) {
			w.old = t.Row(id)
			w.row, err = merge(t, w.old, item)
		} else {
			w.row, err = fresh(t, pk, item)
		}
		if err != nil {
			return nil, err
		}
		pending[key] = w
		writes = append(writes, w)
	}
	return writes, nil
}

// update merges the single data row into every row matching the where clause.
func (e *Executor) update(t *builder.Table, p *Plan) (*Change, error) {
	writes := []*write{}
	for _, id := range matchIds(t, p.Where) {
		old := t.Row(id)
		row, err := merge(t, old, p.Data[0])
		if err != nil {
			return nil, err
		}
		writes = append(writes, &write{id, old, row})
	}
	return e.commit(t, writes, builder.ChangeModified), nil
}

func (e *Executor) delete(t *builder.Table, p *Plan) (*Change, error) {
	ids := matchIds(t, p.Where)

	if len(p.Columns) > 0 {
		for _, column := range p.Columns {
			if column == t.Pk {
				return nil, NewQueryError(http.StatusConflict, fmt.Sprintf("cannot delete primary key %s of table %s", column, t.Name))
			}
			if !t.Columns.Has(column) {
				return nil, NewQueryArgumentError("Field %s does not exist in table %s", column, t.Name)
			}
		}

		writes := make([]*write, len(ids))
		for i, id := range ids {
			old := t.Row(id)
			row := old.Clone()
			for _, column := range p.Columns {
				row.Set(column, nil)
			}
			writes[i] = &write{id, old, row}
		}
		return e.commit(t, writes, builder.ChangeModified), nil
	}

	writes := make([]*write, len(ids))
	for i, id := range ids {
		writes[i] = &write{id, t.Row(id), nil}
	}
	return e.commit(t, writes, builder.ChangeDeleted), nil
}

// drop deletes every row and restarts the autoincrement counter.
func (e *Executor) drop(t *builder.Table) (*Change, error) {
	ch, err := e.delete(t, &Plan{Action: ActionDelete})
	if err != nil {
		return nil, err
	}
	t.AutoIncrement = 1
	return ch, nil
}
