package props

import "slices"

type FieldProp string

var VALID_BUILTIN_PROPS = []FieldProp{
	FieldPropKey, FieldPropAutoIncrement, FieldPropIndex,
	FieldPropDefault, FieldPropVector,
}

const (
	FieldPropKey           FieldProp = "key"     // key(primary)
	FieldPropAutoIncrement FieldProp = "ai"      // ai(true/false)
	FieldPropIndex         FieldProp = "index"   // index(true/false)
	FieldPropDefault       FieldProp = "default" // default(value)
	FieldPropVector        FieldProp = "vector"  // vector(type, level)
)

func (p FieldProp) IsValid() bool {
	return slices.Contains(VALID_BUILTIN_PROPS, p)
}

const KeyPropPrimary string = "primary"

// Props is the set of properties declared on a column.
type Props map[FieldProp]string

func (p Props) Has(prop FieldProp) bool {
	_, ok := p[prop]
	return ok
}

func (p Props) Primary() bool { return p[FieldPropKey] == KeyPropPrimary }

func (p Props) Flag(prop FieldProp) bool { return p[prop] == "true" }
