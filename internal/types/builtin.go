package types

import (
	"fmt"
	"slices"
	"strings"
)

var VALID_BUILTIN_TYPES = []FieldType{
	FieldTypeAny, FieldTypeString, FieldTypeInt, FieldTypeFloat,
	FieldTypeNumber, FieldTypeBool, FieldTypeArray, FieldTypeMap, FieldTypeUuid,
}

type FieldType string

const (
	FieldTypeAny    FieldType = "Any"
	FieldTypeString FieldType = "String"
	FieldTypeInt    FieldType = "Int"
	FieldTypeFloat  FieldType = "Float"
	FieldTypeNumber FieldType = "Number"
	FieldTypeBool   FieldType = "Bool"
	FieldTypeArray  FieldType = "Array"
	FieldTypeMap    FieldType = "Map"
	FieldTypeUuid   FieldType = "Uuid"
)

func (t FieldType) IsValid() bool {
	return slices.Contains(VALID_BUILTIN_TYPES, t)
}

// NormalizeFieldType accepts type names in any case, e.g. "int" or "INT".
func NormalizeFieldType(name string) (FieldType, bool) {
	for _, t := range VALID_BUILTIN_TYPES {
		if strings.EqualFold(string(t), name) {
			return t, true
		}
	}
	return "", false
}

// ColumnType is the closed set of column types. Array columns carry the
// type of their elements.
type ColumnType struct {
	Builtin FieldType
	Elem    *ColumnType
}

var (
	Any    = ColumnType{Builtin: FieldTypeAny}
	String = ColumnType{Builtin: FieldTypeString}
	Int    = ColumnType{Builtin: FieldTypeInt}
	Float  = ColumnType{Builtin: FieldTypeFloat}
	Number = ColumnType{Builtin: FieldTypeNumber}
	Bool   = ColumnType{Builtin: FieldTypeBool}
	Map    = ColumnType{Builtin: FieldTypeMap}
	Uuid   = ColumnType{Builtin: FieldTypeUuid}
)

func ArrayOf(elem ColumnType) ColumnType {
	return ColumnType{Builtin: FieldTypeArray, Elem: &elem}
}

// VectorOf nests ArrayOf level times.
func VectorOf(elem ColumnType, level int) ColumnType {
	t := elem
	for i := 0; i < level; i++ {
		t = ArrayOf(t)
	}
	return t
}

func (c ColumnType) IsArray() bool { return c.Builtin == FieldTypeArray }

func (c ColumnType) String() string {
	if c.Builtin == FieldTypeArray {
		if c.Elem == nil {
			return string(FieldTypeArray)
		}
		return c.Elem.String() + "[]"
	}
	return string(c.Builtin)
}

func (c ColumnType) Equal(o ColumnType) bool {
	if c.Builtin != o.Builtin {
		return false
	}
	if c.Elem == nil || o.Elem == nil {
		return c.Elem == o.Elem
	}
	return c.Elem.Equal(*o.Elem)
}

// ParseColumnType reads "Int", "string", "Int[]" or "Array".
func ParseColumnType(raw string) (ColumnType, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "[]") {
		elem, err := ParseColumnType(strings.TrimSuffix(raw, "[]"))
		if err != nil {
			return ColumnType{}, err
		}
		return ArrayOf(elem), nil
	}

	t, ok := NormalizeFieldType(raw)
	if !ok {
		return ColumnType{}, fmt.Errorf("Invalid field type: %s", raw)
	}
	if t == FieldTypeArray {
		return ArrayOf(Any), nil
	}
	return ColumnType{Builtin: t}, nil
}
