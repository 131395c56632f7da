package builder

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/tobsdb/tobsql/internal/parser"
	"github.com/tobsdb/tobsql/internal/props"
)

// ParseSchema reads table models written in the schema language:
//
//	$TABLE users {
//	    id Int key(primary) ai(true)
//	    name String default("anon") index(true)
//	}
func ParseSchema(schema_data string) ([]Model, error) {
	models := []Model{}
	seen := map[string]bool{}

	scanner := bufio.NewScanner(strings.NewReader(schema_data))
	line_idx := 0

	var current_table *Model
	columns := map[string]bool{}

	for scanner.Scan() {
		line_idx++
		line := strings.TrimSpace(scanner.Text())

		// Ignore empty lines & comments
		if len(line) == 0 || strings.HasPrefix(line, "//") {
			continue
		}

		state, data, err := parser.LineParser(line)
		if err != nil {
			return nil, ParseLineError(line_idx, err.Error())
		}

		switch state {
		case parser.ParserStateTableStart:
			if current_table != nil {
				return nil, ParseLineError(line_idx, fmt.Sprintf("Table %s is not closed", current_table.Name))
			}
			if seen[data.Name] {
				return nil, ParseLineError(line_idx, fmt.Sprintf("Duplicate table %s", data.Name))
			}
			seen[data.Name] = true
			current_table = &Model{Name: data.Name}
			columns = map[string]bool{}
		case parser.ParserStateTableEnd:
			if current_table == nil {
				return nil, ParseLineError(line_idx, "Unexpected }")
			}
			models = append(models, *current_table)
			current_table = nil
		case parser.ParserStateNewField:
			if current_table == nil {
				return nil, ParseLineError(line_idx, fmt.Sprintf("Field %s outside of a table", data.Name))
			}
			if columns[data.Name] {
				return nil, ParseLineError(line_idx, fmt.Sprintf("Duplicate field %s", data.Name))
			}
			columns[data.Name] = true

			column := NewColumn(data.Name, data.Type, data.Properties)
			if raw, ok := data.Properties[props.FieldPropDefault]; ok {
				column.Default, err = props.ParseDefaultPropSafe(data.Type, raw)
				if err != nil {
					return nil, ParseLineError(line_idx, err.Error())
				}
			}
			if err := CheckColumnRules(current_table.Name, column); err != nil {
				return nil, ParseLineError(line_idx, err.Error())
			}
			if column.IsPrimary() {
				for _, c := range current_table.Columns {
					if c.IsPrimary() {
						return nil, ParseLineError(line_idx, "Table can't have multiple primary keys")
					}
				}
			}
			current_table.Columns = append(current_table.Columns, column)
		}
	}

	if current_table != nil {
		return nil, NewSchemaError(current_table.Name, "table is not closed")
	}
	return models, nil
}

func ParseLineError(line int, reason string) error {
	return NewSchemaError("", fmt.Sprintf("Error parsing line %d: %s", line, reason))
}
