package builder

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tobsdb/tobsql/pkg"
)

const (
	DefaultCacheSize    = 128
	DefaultJoinMemoSize = 4096
)

// CacheEntry is a memoized select result. Plain selects keep the ordered
// row ids, selects that reshape rows keep the rows themselves.
type CacheEntry struct {
	Ids  []RowID
	Rows []Row
}

// QueryCache maps a query fingerprint to its last result. A nil cache is
// valid and never hits.
type QueryCache struct {
	c *lru.Cache[uint64, CacheEntry]
}

func NewQueryCache(size int) *QueryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[uint64, CacheEntry](size)
	if err != nil {
		pkg.ErrorLog("failed to create query cache;", err)
		return nil
	}
	return &QueryCache{c}
}

func (q *QueryCache) Get(fingerprint uint64) (CacheEntry, bool) {
	if q == nil {
		return CacheEntry{}, false
	}
	return q.c.Get(fingerprint)
}

func (q *QueryCache) Add(fingerprint uint64, entry CacheEntry) {
	if q == nil {
		return
	}
	q.c.Add(fingerprint, entry)
}

func (q *QueryCache) Len() int {
	if q == nil {
		return 0
	}
	return q.c.Len()
}

// Invalidate drops every entry of the table.
func (q *QueryCache) Invalidate() {
	if q == nil {
		return
	}
	q.c.Purge()
}

type joinMemo struct {
	row         Row
	left, right uint64
}

// JoinIndex memoizes materialized join rows by their two source rows.
// An entry is only used while both sources are still at the version it
// was built from.
type JoinIndex struct {
	c *lru.Cache[string, joinMemo]
}

func NewJoinIndex(size int) *JoinIndex {
	if size <= 0 {
		size = DefaultJoinMemoSize
	}
	c, err := lru.New[string, joinMemo](size)
	if err != nil {
		pkg.ErrorLog("failed to create join index;", err)
		return nil
	}
	return &JoinIndex{c}
}

func joinKey(left_table string, left RowID, right_table string, right RowID) string {
	return fmt.Sprintf("%s:%d|%s:%d", left_table, left, right_table, right)
}

func (j *JoinIndex) Get(left_table string, left RowID, left_stamp uint64,
	right_table string, right RowID, right_stamp uint64,
) (Row, bool) {
	if j == nil {
		return nil, false
	}
	m, ok := j.c.Get(joinKey(left_table, left, right_table, right))
	if !ok || m.left != left_stamp || m.right != right_stamp {
		return nil, false
	}
	return m.row, true
}

func (j *JoinIndex) Add(left_table string, left RowID, left_stamp uint64,
	right_table string, right RowID, right_stamp uint64, row Row,
) {
	if j == nil {
		return
	}
	j.c.Add(joinKey(left_table, left, right_table, right), joinMemo{row, left_stamp, right_stamp})
}

func (j *JoinIndex) Len() int {
	if j == nil {
		return 0
	}
	return j.c.Len()
}

func (j *JoinIndex) Purge() {
	if j == nil {
		return
	}
	j.c.Purge()
}
