package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

// hydrate loads every stored row into schema. Tables are read in
// parallel and applied one after another in table order.
func hydrate(ctx context.Context, schema *builder.Schema, adapter builder.Adapter, workers int) error {
	tables := schema.Tables.Values()
	if len(tables) == 0 {
		return nil
	}
	if workers <= 0 || workers > len(tables) {
		workers = len(tables)
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		pkg.ErrorLog("hydration panic:", v)
	}))
	if err != nil {
		return err
	}
	defer pool.Release()

	loaded := make([][]builder.Row, len(tables))
	errs := make([]error, len(tables))
	var wg sync.WaitGroup

	for i, t := range tables {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			// stays set if the read panics
			errs[i] = fmt.Errorf("table %s: hydration did not finish", t.Name)
			loaded[i], errs[i] = readTable(ctx, adapter, t.Name)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}

	for i, t := range tables {
		for _, row := range loaded[i] {
			restore(t, row)
		}
		pkg.InfoLog("loaded", len(loaded[i]), "rows into", t.Name)
	}
	return nil
}

type indexResult struct {
	pks []any
	err error
}

type rowResult struct {
	row builder.Row
	err error
}

// readTable reads the rows of table in the adapter's index order.
func readTable(ctx context.Context, adapter builder.Adapter, table string) ([]builder.Row, error) {
	index_ch := make(chan indexResult, 1)
	adapter.GetIndex(table, func(pks []any, err error) { index_ch <- indexResult{pks, err} })

	var index indexResult
	select {
	case index = <-index_ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if index.err != nil {
		return nil, fmt.Errorf("table %s: %w", table, index.err)
	}

	rows := make([]builder.Row, 0, len(index.pks))
	for _, pk := range index.pks {
		row_ch := make(chan rowResult, 1)
		adapter.Read(table, pk, func(row builder.Row, err error) { row_ch <- rowResult{row, err} })

		var res rowResult
		select {
		case res = <-row_ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if res.err != nil {
			return nil, fmt.Errorf("table %s: %w", table, res.err)
		}
		if res.row != nil {
			rows = append(rows, res.row)
		}
	}
	return rows, nil
}

// restore puts a stored row into a fresh slot. It is not a history record.
func restore(t *builder.Table, stored builder.Row) {
	row := builder.Row{}
	for key, v := range stored {
		if c := t.Column(key); c != nil {
			row.Set(key, c.Type.Cast(v))
		}
	}

	pk := row.Get(t.Pk)
	if pk == nil {
		pkg.WarnLog("skipping stored row without primary key in", t.Name)
		return
	}
	if id, ok := t.LookupPk(pk); ok && t.IsLive(id) {
		pkg.WarnLog("skipping duplicate stored row", pk, "in", t.Name)
		return
	}

	id := t.Rows.Allocate()
	t.Rows.AppendVersion(id, row)
	t.Reindex(id, nil, row)
}
