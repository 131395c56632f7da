package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tobsdb/tobsql/pkg"
)

// Cast coerces v into the column's type. nil is never coerced.
func (c ColumnType) Cast(v any) any {
	if v == nil {
		return nil
	}

	switch c.Builtin {
	case FieldTypeAny:
		return v
	case FieldTypeString:
		return castString(v)
	case FieldTypeInt:
		return castInt(v)
	case FieldTypeFloat:
		return castFloat(v)
	case FieldTypeNumber:
		return castNumber(v)
	case FieldTypeBool:
		return castBool(v)
	case FieldTypeArray:
		elem := Any
		if c.Elem != nil {
			elem = *c.Elem
		}
		return castArray(elem, v)
	case FieldTypeMap:
		return castMap(v)
	case FieldTypeUuid:
		return castUuid(v)
	}
	panic(fmt.Sprintf("unhandled column type %q", c.Builtin))
}

func castString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	if _, ok := pkg.AsSlice(v); ok {
		return marshalString(v)
	}
	if _, ok := v.(map[string]any); ok {
		return marshalString(v)
	}
	if m, ok := v.(pkg.Map[string, any]); ok {
		return marshalString(map[string]any(m))
	}
	return fmt.Sprint(v)
}

func marshalString(v any) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(buf)
}

func castInt(v any) int {
	switch v := v.(type) {
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return int(f)
		}
		return 0
	case bool:
		if v {
			return 1
		}
		return 0
	}
	return pkg.NumToInt(v)
}

func castFloat(v any) float64 {
	switch v := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if v {
			return 1
		}
		return 0
	}
	f, _ := pkg.ToFloat(v)
	return f
}

// castNumber keeps whole numbers as int.
func castNumber(v any) any {
	f := castFloat(v)
	if pkg.IsNumber(v) {
		switch v.(type) {
		case float32, float64:
			return f
		}
		return pkg.NumToInt(v)
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
		return int(f)
	}
	return f
}

func castBool(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	if f, ok := pkg.ToFloat(v); ok {
		return f == 1
	}
	return false
}

func castArray(elem ColumnType, v any) []any {
	items, ok := pkg.AsSlice(v)
	if !ok {
		return []any{}
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = elem.Cast(item)
	}
	return out
}

func castMap(v any) map[string]any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case pkg.Map[string, any]:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case string:
		out := map[string]any{}
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return map[string]any{}
		}
		return out
	}
	return map[string]any{}
}

func castUuid(v any) string {
	switch v := v.(type) {
	case uuid.UUID:
		return v.String()
	case [16]byte:
		return uuid.UUID(v).String()
	}
	return castString(v)
}

// NewUuid generates a random id for uuid primary keys.
func NewUuid() string { return uuid.NewString() }
