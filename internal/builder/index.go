package builder

import (
	"github.com/google/btree"
	"github.com/tobsdb/tobsql/pkg"
)

type indexEntry struct {
	Value any
	Id    RowID
}

func indexEntryLess(a, b indexEntry) bool {
	if c := pkg.CompareAny(a.Value, b.Value); c != 0 {
		return c < 0
	}
	return a.Id < b.Id
}

// Index is a secondary index over one column. Only scalar values are
// indexed; rows holding arrays or maps in the column are never returned.
type Index struct {
	Column string
	tree   *btree.BTreeG[indexEntry]
}

func NewIndex(column string) *Index {
	return &Index{Column: column, tree: btree.NewG(16, indexEntryLess)}
}

func normalizeIndexValue(v any) (any, bool) {
	if !pkg.IsScalar(v) {
		return nil, false
	}
	if f, ok := pkg.ToFloat(v); ok {
		return f, true
	}
	return v, true
}

func (idx *Index) Insert(v any, id RowID) {
	if v, ok := normalizeIndexValue(v); ok {
		idx.tree.ReplaceOrInsert(indexEntry{v, id})
	}
}

func (idx *Index) Delete(v any, id RowID) {
	if v, ok := normalizeIndexValue(v); ok {
		idx.tree.Delete(indexEntry{v, id})
	}
}

func (idx *Index) Len() int { return idx.tree.Len() }

func (idx *Index) Clear() { idx.tree.Clear(false) }

// Equal returns the ids holding v.
func (idx *Index) Equal(v any) []RowID {
	v, ok := normalizeIndexValue(v)
	if !ok {
		return nil
	}
	ids := []RowID{}
	idx.tree.AscendGreaterOrEqual(indexEntry{v, -1}, func(e indexEntry) bool {
		if pkg.CompareAny(e.Value, v) != 0 {
			return false
		}
		ids = append(ids, e.Id)
		return true
	})
	return ids
}

// Range returns the ids whose value lies between lo and hi, both
// inclusive. A nil bound is open, but the scan never leaves the type of
// the other bound.
func (idx *Index) Range(lo, hi any) []RowID {
	var ok bool
	if lo != nil {
		if lo, ok = normalizeIndexValue(lo); !ok {
			return nil
		}
	}
	if hi != nil {
		if hi, ok = normalizeIndexValue(hi); !ok {
			return nil
		}
	}

	ref := lo
	if ref == nil {
		ref = hi
	}

	ids := []RowID{}
	iter := func(e indexEntry) bool {
		if hi != nil && pkg.CompareAny(e.Value, hi) > 0 {
			return false
		}
		if ref != nil {
			if rank := pkg.TypeRank(e.Value); rank > pkg.TypeRank(ref) {
				return false
			} else if rank < pkg.TypeRank(ref) {
				return true
			}
		}
		ids = append(ids, e.Id)
		return true
	}

	if lo != nil {
		idx.tree.AscendGreaterOrEqual(indexEntry{lo, -1}, iter)
	} else {
		idx.tree.Ascend(iter)
	}
	return ids
}
