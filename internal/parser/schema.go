package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tobsdb/tobsql/internal/props"
	"github.com/tobsdb/tobsql/internal/types"
	"github.com/tobsdb/tobsql/pkg"
)

type LineParserState int

const (
	ParserStateTableStart LineParserState = iota
	ParserStateTableEnd
	ParserStateNewField
	ParserStateIdle
)

type ParserData struct {
	Name       string
	Type       types.ColumnType
	Properties props.Props
}

const (
	table_prefix     = "$TABLE "
	table_prefix_len = len(table_prefix)
)

var (
	name_regex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	prop_regex = regexp.MustCompile(`(\w+)\(([^)]*)\)`)
)

func LineParser(line string) (LineParserState, *ParserData, error) {
	if strings.HasPrefix(line, table_prefix) {
		line := strings.TrimSpace(line[table_prefix_len:])
		name_end := strings.Index(line, " ")

		if name_end > 0 {
			open_bracket := strings.TrimSpace(line[name_end:])
			if open_bracket != "{" {
				return ParserStateIdle, nil, errors.New("Table name cannot include space")
			}
			name := line[:name_end]
			if !name_regex.MatchString(name) {
				return ParserStateIdle, nil, errors.New("Table name contains invalid characters")
			}
			return ParserStateTableStart, &ParserData{Name: name}, nil
		}
	} else if line == "}" {
		return ParserStateTableEnd, nil, nil
	} else {
		splits := strings.Split(line, " ")
		splits = pkg.Filter(splits, func(s string) bool { return len(s) > 0 })
		if len(splits) == 0 || strings.HasPrefix(splits[0], "$") || splits[0] == "{" {
			return ParserStateIdle, nil, errors.New("Invalid line")
		}
		if !name_regex.MatchString(splits[0]) {
			return ParserStateIdle, nil, errors.New("Field name contains invalid characters")
		}
		if len(splits) < 2 {
			return ParserStateIdle, nil, fmt.Errorf("Field %s does not have a type", splits[0])
		}

		column_type, err := types.ParseColumnType(splits[1])
		if err != nil {
			return ParserStateIdle, nil, err
		}

		raw_field_props := strings.Join(splits[2:], " ")
		field_props, err := parseRawFieldProps(raw_field_props)
		if err != nil {
			return ParserStateIdle, nil, err
		}

		if v, ok := field_props[props.FieldPropVector]; ok {
			if !column_type.IsArray() {
				return ParserStateIdle, nil, fmt.Errorf("field(%s %s) cannot have vector prop", splits[0], column_type)
			}
			column_type, err = props.ParseVectorPropSafe(v)
			if err != nil {
				return ParserStateIdle, nil, err
			}
		}

		return ParserStateNewField, &ParserData{
			Name:       splits[0],
			Type:       column_type,
			Properties: field_props,
		}, nil
	}
	return ParserStateIdle, nil, errors.New("Invalid line")
}

func parseRawFieldProps(raw string) (props.Props, error) {
	field_props := props.Props{}

	for _, entry := range prop_regex.FindAllStringSubmatch(raw, -1) {
		prop, value := props.FieldProp(entry[1]), strings.TrimSpace(entry[2])
		if !prop.IsValid() {
			return nil, fmt.Errorf("Invalid field prop: %s", prop)
		}
		if len(value) == 0 {
			return nil, fmt.Errorf("No value for prop: %s", prop)
		}

		switch prop {
		case props.FieldPropKey:
			if value != props.KeyPropPrimary {
				return nil, fmt.Errorf("key(%s) is not a valid prop", value)
			}
		case props.FieldPropAutoIncrement, props.FieldPropIndex:
			if _, err := props.ParseBoolPropSafe(prop, value); err != nil {
				return nil, err
			}
		}
		field_props[prop] = value
	}

	return field_props, nil
}
