package builder

import (
	"github.com/tobsdb/tobsql/pkg"
)

// Maps row field name to its saved data.
// A Row held by a RowStore is never written to again; writers clone first.
type Row = pkg.Map[string, any]

type RowID = int

// slot is the timeline of one row. versions[0] is the newest write and
// p selects the version that is current. A nil version means the row
// did not exist at that point.
type slot struct {
	versions []Row
	stamps   []uint64
	p        int
}

// RowStore owns every row slot of a table. Row ids are slot positions
// and are never reused for the lifetime of the table.
type RowStore struct {
	slots []*slot
	// keep only the latest version when false
	keep_history bool
	stamp        uint64
}

func NewRowStore(keep_history bool) *RowStore {
	return &RowStore{keep_history: keep_history}
}

func (s *RowStore) next_stamp() uint64 {
	s.stamp++
	return s.stamp
}

// Allocate appends an empty slot and returns its id.
func (s *RowStore) Allocate() RowID {
	s.slots = append(s.slots, &slot{versions: []Row{nil}, stamps: []uint64{s.next_stamp()}})
	return len(s.slots) - 1
}

func (s *RowStore) Len() int { return len(s.slots) }

func (s *RowStore) Current(id RowID) Row {
	sl := s.slots[id]
	return sl.versions[sl.p]
}

// Stamp identifies the current version of a row. It changes whenever the
// current version does.
func (s *RowStore) Stamp(id RowID) uint64 {
	sl := s.slots[id]
	return sl.stamps[sl.p]
}

func (s *RowStore) Pointer(id RowID) int { return s.slots[id].p }

// Versions returns the row's timeline, newest first.
func (s *RowStore) Versions(id RowID) []Row {
	return s.slots[id].versions
}

// AppendVersion makes row the current version. Versions ahead of the
// pointer are discarded first so the timeline stays linear.
func (s *RowStore) AppendVersion(id RowID, row Row) {
	sl := s.slots[id]
	stamp := s.next_stamp()
	if !s.keep_history {
		sl.versions, sl.stamps, sl.p = []Row{row}, []uint64{stamp}, 0
		return
	}
	s.Truncate(id)
	sl.versions = append([]Row{row}, sl.versions...)
	sl.stamps = append([]uint64{stamp}, sl.stamps...)
}

// ShiftPointer moves the read pointer by delta; positive moves toward
// older versions.
func (s *RowStore) ShiftPointer(id RowID, delta int) {
	sl := s.slots[id]
	sl.p = max(0, min(sl.p+delta, len(sl.versions)-1))
}

// Truncate drops the versions ahead of the pointer.
func (s *RowStore) Truncate(id RowID) {
	sl := s.slots[id]
	if sl.p == 0 {
		return
	}
	sl.versions = sl.versions[sl.p:]
	sl.stamps = sl.stamps[sl.p:]
	sl.p = 0
}

// Compact forgets everything but the current version.
func (s *RowStore) Compact(id RowID) {
	sl := s.slots[id]
	sl.versions = []Row{sl.versions[sl.p]}
	sl.stamps = []uint64{sl.stamps[sl.p]}
	sl.p = 0
}

func (s *RowStore) Reset() {
	s.slots = nil
}
