package builder

type ChangeType string

const (
	ChangeInserted ChangeType = "inserted"
	ChangeDeleted  ChangeType = "deleted"
	ChangeModified ChangeType = "modified"
)

// Reverse is the change reported when a change of type c is undone.
func (c ChangeType) Reverse() ChangeType {
	switch c {
	case ChangeInserted:
		return ChangeDeleted
	case ChangeDeleted:
		return ChangeInserted
	}
	return c
}

// ChangeEvent is sent to the dispatcher once per mutating query and once
// per undo or redo.
type ChangeEvent struct {
	Table       string
	Change      ChangeType
	ChangedRows []Row
}

type Dispatcher interface {
	Dispatch(ev ChangeEvent)
}

type DispatcherFunc func(ev ChangeEvent)

func (f DispatcherFunc) Dispatch(ev ChangeEvent) { f(ev) }

// Adapter mirrors table rows to durable storage. The engine's memory is
// the source of truth: writes are fire-and-forget and reads only happen
// once, while connecting.
type Adapter interface {
	Write(table string, pk any, data Row, done func(pk any, err error))
	Read(table string, pk any, done func(row Row, err error))
	// ReadWhere reads every row matching pred. A nil pred matches all rows.
	ReadWhere(table string, pred func(Row) bool, done func(rows []Row, err error))
	Delete(table string, pk any, done func(err error))
	// GetIndex lists the stored primary keys of a table in storage order.
	GetIndex(table string, done func(pks []any, err error))
}
