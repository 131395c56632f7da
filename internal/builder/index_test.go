package builder_test

import (
	"testing"

	. "github.com/tobsdb/tobsql/internal/builder"
	"gotest.tools/assert"
)

func TestIndex(t *testing.T) {
	idx := NewIndex("age")
	idx.Insert(20, 0)
	idx.Insert(30.0, 1)
	idx.Insert(20, 2)
	idx.Insert("20", 3)
	idx.Insert(nil, 4)
	idx.Insert([]any{1}, 5)

	t.Run("skips non scalar values", func(t *testing.T) {
		assert.Equal(t, idx.Len(), 5)
	})

	t.Run("equal", func(t *testing.T) {
		assert.DeepEqual(t, idx.Equal(20.0), []RowID{0, 2})
		assert.DeepEqual(t, idx.Equal("20"), []RowID{3})
		assert.DeepEqual(t, idx.Equal(nil), []RowID{4})
		assert.DeepEqual(t, idx.Equal(99), []RowID{})
	})

	t.Run("range stays within the type of its bound", func(t *testing.T) {
		assert.DeepEqual(t, idx.Range(20, 30), []RowID{0, 2, 1})
		assert.DeepEqual(t, idx.Range(21, nil), []RowID{1})
		assert.DeepEqual(t, idx.Range(nil, 25), []RowID{0, 2})
	})

	t.Run("delete", func(t *testing.T) {
		idx.Delete(20, 0)
		assert.DeepEqual(t, idx.Equal(20), []RowID{2})
	})
}
