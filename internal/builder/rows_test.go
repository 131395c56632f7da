package builder_test

import (
	"testing"

	. "github.com/tobsdb/tobsql/internal/builder"
	"gotest.tools/assert"
)

func TestRowStore(t *testing.T) {
	t.Run("allocate", func(t *testing.T) {
		s := NewRowStore(true)
		assert.Equal(t, s.Allocate(), 0)
		assert.Equal(t, s.Allocate(), 1)
		assert.Equal(t, s.Len(), 2)
		assert.Assert(t, s.Current(0) == nil)
		assert.Equal(t, s.Pointer(0), 0)
	})

	t.Run("append version", func(t *testing.T) {
		s := NewRowStore(true)
		id := s.Allocate()
		s.AppendVersion(id, Row{"a": 1})
		s.AppendVersion(id, Row{"a": 2})

		assert.DeepEqual(t, s.Current(id), Row{"a": 2})
		assert.Equal(t, len(s.Versions(id)), 3)
		assert.DeepEqual(t, s.Versions(id)[1], Row{"a": 1})
	})

	t.Run("shift pointer clamps", func(t *testing.T) {
		s := NewRowStore(true)
		id := s.Allocate()
		s.AppendVersion(id, Row{"a": 1})

		s.ShiftPointer(id, 1)
		assert.Assert(t, s.Current(id) == nil)
		s.ShiftPointer(id, 5)
		assert.Equal(t, s.Pointer(id), 1)
		s.ShiftPointer(id, -9)
		assert.Equal(t, s.Pointer(id), 0)
		assert.DeepEqual(t, s.Current(id), Row{"a": 1})
	})

	t.Run("append after undo drops the future", func(t *testing.T) {
		s := NewRowStore(true)
		id := s.Allocate()
		s.AppendVersion(id, Row{"a": 1})
		s.AppendVersion(id, Row{"a": 2})
		s.ShiftPointer(id, 1)

		s.AppendVersion(id, Row{"a": 3})
		assert.Equal(t, s.Pointer(id), 0)
		assert.Equal(t, len(s.Versions(id)), 3)
		assert.DeepEqual(t, s.Versions(id)[1], Row{"a": 1})
	})

	t.Run("stamps change with the current version", func(t *testing.T) {
		s := NewRowStore(true)
		id := s.Allocate()
		s.AppendVersion(id, Row{"a": 1})
		first := s.Stamp(id)
		s.AppendVersion(id, Row{"a": 2})
		second := s.Stamp(id)
		assert.Assert(t, first != second)

		s.ShiftPointer(id, 1)
		assert.Equal(t, s.Stamp(id), first)
		s.AppendVersion(id, Row{"a": 3})
		assert.Assert(t, s.Stamp(id) != second)
	})

	t.Run("without history", func(t *testing.T) {
		s := NewRowStore(false)
		id := s.Allocate()
		s.AppendVersion(id, Row{"a": 1})
		s.AppendVersion(id, Row{"a": 2})
		assert.Equal(t, len(s.Versions(id)), 1)
		assert.DeepEqual(t, s.Current(id), Row{"a": 2})
	})

	t.Run("compact", func(t *testing.T) {
		s := NewRowStore(true)
		id := s.Allocate()
		s.AppendVersion(id, Row{"a": 1})
		s.AppendVersion(id, Row{"a": 2})
		s.ShiftPointer(id, 1)
		s.Compact(id)
		assert.Equal(t, len(s.Versions(id)), 1)
		assert.DeepEqual(t, s.Current(id), Row{"a": 1})
	})
}
