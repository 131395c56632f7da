package engine

import (
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

// mirror sends written rows and removed rows to the adapter without
// waiting for it. Failures are only logged.
func (e *Engine) mirror(t *builder.Table, written, removed []builder.Row) {
	if e.adapter == nil || t == nil {
		return
	}

	for _, row := range written {
		e.adapter.Write(t.Name, row.Get(t.Pk), row, func(pk any, err error) {
			if err != nil {
				pkg.ErrorLog("failed to write", t.Name, pk, err)
			}
		})
	}
	for _, row := range removed {
		pk := row.Get(t.Pk)
		e.adapter.Delete(t.Name, pk, func(err error) {
			if err != nil {
				pkg.ErrorLog("failed to delete", t.Name, pk, err)
			}
		})
	}
}

// clearAdapter removes every stored row of every table.
func (e *Engine) clearAdapter() {
	if e.adapter == nil {
		return
	}
	for _, t := range e.schema.Tables.Values() {
		name := t.Name
		e.adapter.GetIndex(name, func(pks []any, err error) {
			if err != nil {
				pkg.ErrorLog("failed to list", name, err)
				return
			}
			for _, pk := range pks {
				e.adapter.Delete(name, pk, func(err error) {
					if err != nil {
						pkg.ErrorLog("failed to delete", name, pk, err)
					}
				})
			}
		})
	}
}
