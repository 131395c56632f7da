package builder

import (
	"fmt"

	"github.com/tobsdb/tobsql/internal/props"
	"github.com/tobsdb/tobsql/internal/types"
)

// Column is one column of a table model.
type Column struct {
	Key     string
	Type    types.ColumnType
	Default any
	Props   props.Props
}

func NewColumn(key string, t types.ColumnType, p props.Props) *Column {
	if p == nil {
		p = props.Props{}
	}
	return &Column{Key: key, Type: t, Props: p}
}

// clone copies the column with its default cast to the column type.
func (c *Column) clone() *Column {
	n := *c
	n.Props = props.Props{}
	for k, v := range c.Props {
		n.Props[k] = v
	}
	n.Default = n.Type.Cast(n.Default)
	return &n
}

func (c *Column) IsPrimary() bool { return c.Props.Primary() }

func (c *Column) IsAutoIncrement() bool { return c.Props.Flag(props.FieldPropAutoIncrement) }

func (c *Column) IsIndexed() bool { return c.Props.Flag(props.FieldPropIndex) }

func (c *Column) HasDefault() bool { return c.Default != nil }

// column local rules:
// - primary key must be Int, String, Float, Number or Uuid
// - ai only on an Int primary key
// - no default on the primary key
func CheckColumnRules(table string, c *Column) error {
	if c.Key == "" {
		return NewSchemaError(table, "column without a key")
	}

	if c.IsPrimary() {
		switch c.Type.Builtin {
		case types.FieldTypeInt, types.FieldTypeString, types.FieldTypeFloat,
			types.FieldTypeNumber, types.FieldTypeUuid:
		default:
			return NewSchemaError(table,
				fmt.Sprintf("field(%s %s key(primary)) cannot be a primary key", c.Key, c.Type))
		}
		if c.HasDefault() {
			return NewSchemaError(table,
				fmt.Sprintf("field(%s %s key(primary)) cannot have default prop", c.Key, c.Type))
		}
	}

	if c.IsAutoIncrement() && (!c.IsPrimary() || c.Type.Builtin != types.FieldTypeInt) {
		return NewSchemaError(table,
			fmt.Sprintf("field(%s %s) ai(true) requires an Int primary key", c.Key, c.Type))
	}

	return nil
}
