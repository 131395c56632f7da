package pkg

import (
	"fmt"
	"reflect"
	"strings"
)

func Filter[T any](items []T, predicate func(T) bool) []T {
	filtered := []T{}
	for _, item := range items {
		if predicate(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Converts a value suspected to be a number to an int.
// Values decoded from json arrive as float64 so this is needed all over the code.
func NumToInt(num any) int {
	switch num := num.(type) {
	case int:
		return num
	case int8:
		return int(num)
	case int16:
		return int(num)
	case int32:
		return int(num)
	case int64:
		return int(num)
	case uint:
		return int(num)
	case uint8:
		return int(num)
	case uint16:
		return int(num)
	case uint32:
		return int(num)
	case uint64:
		return int(num)
	case float32:
		return int(num)
	case float64:
		return int(num)
	}
	return 0
}

// ToFloat reports the numeric value of v, if v is a number.
func ToFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func IsNumber(v any) bool {
	_, ok := ToFloat(v)
	return ok
}

// AsSlice returns the elements of any slice or array value.
func AsSlice(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// EqualAny compares two values with numbers of any width being equal
// when their values are.
func EqualAny(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// TypeRank orders the kinds of row values.
func TypeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	}
	if IsNumber(v) {
		return 2
	}
	return 4
}

// CompareAny gives a total order over row values:
// nil < bool < number < string < everything else.
func CompareAny(a, b any) int {
	ra, rb := TypeRank(a), TypeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0
		} else if !ba {
			return -1
		}
		return 1
	case 2:
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		if fa < fb {
			return -1
		} else if fa > fb {
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// IsScalar reports whether v can be ordered by CompareAny without
// falling back to its printed form.
func IsScalar(v any) bool { return TypeRank(v) < 4 }
