package query

import (
	"slices"
	"sort"
	"strings"

	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/pkg"
)

type SortKey struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

func Asc(column string) SortKey  { return SortKey{Column: column} }
func Desc(column string) SortKey { return SortKey{Column: column, Desc: true} }

func parseDirection(column string, dir any) (SortKey, error) {
	s, ok := dir.(string)
	if !ok {
		return SortKey{}, NewQueryArgumentError("sort direction for %s must be a string", column)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "":
		return Asc(column), nil
	case "desc":
		return Desc(column), nil
	}
	return SortKey{}, NewQueryArgumentError("Invalid sort direction %q for %s", s, column)
}

// ParseSortKeys reads groupby/orderby args. Accepted forms are a list of
// SortKey, a list of [column, direction] pairs or single-key objects,
// and an object of column -> direction (applied in column name order).
func ParseSortKeys(arg any) ([]SortKey, error) {
	switch arg := arg.(type) {
	case []SortKey:
		return arg, nil
	case SortKey:
		return []SortKey{arg}, nil
	case map[string]any:
		return sortKeysFromMap(arg)
	case builder.Row:
		return sortKeysFromMap(arg)
	case map[string]string:
		m := map[string]any{}
		for k, v := range arg {
			m[k] = v
		}
		return sortKeysFromMap(m)
	}

	items, ok := pkg.AsSlice(arg)
	if !ok || len(items) == 0 {
		return nil, NewQueryArgumentError("sort keys must be a non-empty array or object")
	}

	keys := []SortKey{}
	for _, item := range items {
		switch item := item.(type) {
		case SortKey:
			keys = append(keys, item)
		case string:
			keys = append(keys, Asc(item))
		case map[string]any:
			more, err := sortKeysFromMap(item)
			if err != nil {
				return nil, err
			}
			keys = append(keys, more...)
		default:
			pair, ok := pkg.AsSlice(item)
			if !ok || len(pair) == 0 || len(pair) > 2 {
				return nil, NewQueryArgumentError("Invalid sort key %v", item)
			}
			column, ok := pair[0].(string)
			if !ok {
				return nil, NewQueryArgumentError("Invalid sort key %v", item)
			}
			var dir any = "asc"
			if len(pair) == 2 {
				dir = pair[1]
			}
			key, err := parseDirection(column, dir)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func sortKeysFromMap[M ~map[string]any](m M) ([]SortKey, error) {
	if len(m) == 0 {
		return nil, NewQueryArgumentError("sort keys cannot be empty")
	}
	columns := make([]string, 0, len(m))
	for k := range m {
		columns = append(columns, k)
	}
	slices.Sort(columns)

	keys := []SortKey{}
	for _, column := range columns {
		key, err := parseDirection(column, m[column])
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// compareBy compares two rows key by key, moving to the next key only on ties.
func compareBy(a, b builder.Row, keys []SortKey) int {
	for _, key := range keys {
		c := pkg.CompareAny(Resolve(a, key.Column), Resolve(b, key.Column))
		if key.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// record is a row flowing through a select together with the slot it
// came from. Rows built by joins or aggregation have id -1.
type record struct {
	id  builder.RowID
	row builder.Row
}

func sortRecords(records []record, keys []SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareBy(records[i].row, records[j].row, keys) < 0
	})
}
