package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tobsdb/tobsql/internal/builder"
)

func groupKey(row builder.Row, keys []SortKey) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%v", Resolve(row, key.Column))
	}
	return strings.Join(parts, ".")
}

// groupRecords buckets records by the printed values of the group columns.
// Members keep their relative order; groups are sorted by the group
// columns in the given directions.
func groupRecords(records []record, keys []SortKey) [][]record {
	groups := [][]record{}
	index := map[string]int{}

	for _, rec := range records {
		k := groupKey(rec.row, keys)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], rec)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return compareBy(groups[i][0].row, groups[j][0].row, keys) < 0
	})
	return groups
}

func flatten(groups [][]record) []record {
	out := []record{}
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func rowsOf(records []record) []builder.Row {
	rows := make([]builder.Row, len(records))
	for i, rec := range records {
		rows[i] = rec.row
	}
	return rows
}
