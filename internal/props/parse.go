package props

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tobsdb/tobsql/internal/types"
)

// ParseVectorPropSafe reads vector(type, level) into the nested array type.
func ParseVectorPropSafe(value string) (types.ColumnType, error) {
	parsed_val := strings.Split(value, ",")

	if len(parsed_val) == 0 || len(parsed_val) > 2 {
		return types.ColumnType{}, fmt.Errorf("Invalid syntax: vector(%s)", value)
	}

	v_type, err := types.ParseColumnType(parsed_val[0])
	if err != nil {
		return types.ColumnType{}, fmt.Errorf("vector(%s) is not a valid prop; %s is not a valid type",
			value, strings.TrimSpace(parsed_val[0]))
	}

	if len(parsed_val) < 2 {
		return types.ArrayOf(v_type), nil
	}

	v_level, err := strconv.ParseInt(strings.TrimSpace(parsed_val[1]), 10, 0)
	if err != nil {
		return types.ColumnType{}, fmt.Errorf("vector(%s) is not a valid prop; %s", value, err.Error())
	} else if v_level < 1 {
		return types.ColumnType{}, fmt.Errorf("vector(%s) is not a valid prop; level must be >= 1", value)
	}

	return types.VectorOf(v_type, int(v_level)), nil
}

func ParseBoolPropSafe(prop FieldProp, value string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s(%s) is not a valid prop", prop, value)
	}
	return b, nil
}

// ParseDefaultPropSafe reads the literal in default(...) as a value of the column type.
// Strings may be quoted with " or '. Arrays and maps are written as json.
func ParseDefaultPropSafe(c types.ColumnType, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch c.Builtin {
	case types.FieldTypeString, types.FieldTypeUuid:
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		return value, nil
	case types.FieldTypeInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("default(%s) is not a valid prop; expected Int", value)
		}
		return i, nil
	case types.FieldTypeFloat, types.FieldTypeNumber:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("default(%s) is not a valid prop; expected %s", value, c.Builtin)
		}
		return c.Cast(f), nil
	case types.FieldTypeBool:
		return ParseBoolPropSafe(FieldPropDefault, value)
	}

	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		if c.Builtin == types.FieldTypeAny {
			return value, nil
		}
		return nil, fmt.Errorf("default(%s) is not a valid prop; %s", value, err.Error())
	}
	return c.Cast(v), nil
}
