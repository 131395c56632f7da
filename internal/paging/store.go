package paging

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

const HEAD_FILE = "HEAD"

func GobRegisterTypes() {
	gob.Register(int(0))
	gob.Register(float64(0.))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

type op uint8

const (
	opWrite op = iota + 1
	opDelete
)

// entry is one record of a table log.
type entry struct {
	Op  op
	Pk  any
	Row map[string]any
}

// tableLog is the page chain of one table and the rows it replays to.
type tableLog struct {
	dir  string
	head uuid.UUID
	last *Page

	rows  pkg.Map[string, builder.Row]
	pks   pkg.Map[string, any]
	order []string
}

// Store is a builder.Adapter keeping an append-only page log per table
// under base. Callbacks run before the call returns.
type Store struct {
	locker sync.RWMutex
	base   string
	tables pkg.Map[string, *tableLog]
}

func (s *Store) GetLocker() *sync.RWMutex { return &s.locker }

func Open(base string) (*Store, error) {
	GobRegisterTypes()
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, err
	}
	return &Store{base: base, tables: pkg.Map[string, *tableLog]{}}, nil
}

func formatPk(pk any) string { return fmt.Sprint(pk) }

// table returns the log of name, replaying it from disk the first time.
func (s *Store) table(name string) (*tableLog, error) {
	if strings.ContainsAny(name, `/\`) || name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if l := s.tables.Get(name); l != nil {
		return l, nil
	}

	l := &tableLog{
		dir:  path.Join(s.base, name),
		rows: pkg.Map[string, builder.Row]{},
		pks:  pkg.Map[string, any]{},
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, err
	}
	if err := l.replay(); err != nil {
		return nil, err
	}
	s.tables.Set(name, l)
	return l, nil
}

func (l *tableLog) replay() error {
	data, err := os.ReadFile(path.Join(l.dir, HEAD_FILE))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	l.head, err = uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("%w: %s", ERR_INVALID_PAGE_HEADER, err)
	}

	for id := l.head; id != uuid.Nil; {
		page, err := LoadPageUUID(l.dir, id)
		if err != nil {
			return err
		}
		r := page.NewReader()
		for r.ReadNext() {
			var e entry
			if err := gob.NewDecoder(bytes.NewReader(r.Buf)).Decode(&e); err != nil {
				return err
			}
			l.apply(e)
		}
		if r.Err() != nil {
			return fmt.Errorf("page %s: %w", id, r.Err())
		}
		l.last = page
		id = page.Next
	}
	return nil
}

func (l *tableLog) apply(e entry) {
	key := formatPk(e.Pk)
	switch e.Op {
	case opWrite:
		if !l.rows.Has(key) {
			l.order = append(l.order, key)
		}
		l.rows.Set(key, builder.Row(e.Row))
		l.pks.Set(key, e.Pk)
	case opDelete:
		if !l.rows.Has(key) {
			return
		}
		l.rows.Delete(key)
		l.pks.Delete(key)
		l.order = slices.DeleteFunc(l.order, func(k string) bool { return k == key })
	}
}

// append writes e to the last page, starting a new page when it is full.
func (l *tableLog) append(e entry) error {
	buf := bytes.Buffer{}
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return err
	}

	if l.last == nil {
		l.last = NewPage(uuid.Nil, uuid.Nil)
		l.head = l.last.ID()
		if err := os.WriteFile(path.Join(l.dir, HEAD_FILE), []byte(l.head.String()), 0644); err != nil {
			return err
		}
	}

	err := l.last.Push(buf.Bytes())
	if errors.Is(err, ERR_PAGE_OVERFLOW) {
		next := NewPage(l.last.ID(), uuid.Nil)
		l.last.Next = next.ID()
		if err := l.last.WriteToFile(l.dir); err != nil {
			return err
		}
		l.last = next
		err = l.last.Push(buf.Bytes())
	}
	if err != nil {
		return err
	}
	if err := l.last.WriteToFile(l.dir); err != nil {
		return err
	}

	l.apply(e)
	return nil
}

func (s *Store) Write(table string, pk any, data builder.Row, done func(pk any, err error)) {
	err := pkg.LockWrapErr(s, func() error {
		l, err := s.table(table)
		if err != nil {
			return err
		}
		return l.append(entry{Op: opWrite, Pk: pk, Row: map[string]any(data.Clone())})
	})
	if err != nil {
		pkg.DebugLog("paging: write", table, pk, err)
	}
	done(pk, err)
}

func (s *Store) Read(table string, pk any, done func(row builder.Row, err error)) {
	var row builder.Row
	err := pkg.LockWrapErr(s, func() error {
		l, err := s.table(table)
		if err != nil {
			return err
		}
		row = l.rows.Get(formatPk(pk)).Clone()
		return nil
	})
	done(row, err)
}

func (s *Store) ReadWhere(table string, pred func(builder.Row) bool, done func(rows []builder.Row, err error)) {
	rows := []builder.Row{}
	err := pkg.LockWrapErr(s, func() error {
		l, err := s.table(table)
		if err != nil {
			return err
		}
		for _, key := range l.order {
			row := l.rows.Get(key)
			if pred == nil || pred(row) {
				rows = append(rows, row.Clone())
			}
		}
		return nil
	})
	done(rows, err)
}

func (s *Store) Delete(table string, pk any, done func(err error)) {
	err := pkg.LockWrapErr(s, func() error {
		l, err := s.table(table)
		if err != nil {
			return err
		}
		if !l.rows.Has(formatPk(pk)) {
			return nil
		}
		return l.append(entry{Op: opDelete, Pk: pk})
	})
	done(err)
}

func (s *Store) GetIndex(table string, done func(pks []any, err error)) {
	var pks []any
	err := pkg.LockWrapErr(s, func() error {
		l, err := s.table(table)
		if err != nil {
			return err
		}
		pks = make([]any, len(l.order))
		for i, key := range l.order {
			pks[i] = l.pks.Get(key)
		}
		return nil
	})
	done(pks, err)
}

// Compact rewrites the log of table so it holds only its live rows.
func (s *Store) Compact(table string) error {
	return pkg.LockWrapErr(s, func() error {
		l, err := s.table(table)
		if err != nil {
			return err
		}

		old := []uuid.UUID{}
		for p := l.last; p != nil; {
			old = append(old, p.ID())
			if p.Prev == uuid.Nil {
				break
			}
			if p, err = LoadPageUUID(l.dir, p.Prev); err != nil {
				return err
			}
		}

		fresh := &tableLog{dir: l.dir, rows: pkg.Map[string, builder.Row]{}, pks: pkg.Map[string, any]{}}
		for _, key := range l.order {
			if err := fresh.append(entry{Op: opWrite, Pk: l.pks.Get(key), Row: l.rows.Get(key)}); err != nil {
				return err
			}
		}
		if fresh.last == nil {
			if err := os.Remove(path.Join(l.dir, HEAD_FILE)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		for _, id := range old {
			if err := os.Remove(path.Join(l.dir, id.String())); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		s.tables.Set(table, fresh)
		return nil
	})
}

var _ builder.Adapter = (*Store)(nil)
