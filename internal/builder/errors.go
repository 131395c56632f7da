package builder

import (
	"errors"
	"fmt"
)

var ErrSchema = errors.New("schema error")

// SchemaError reports a malformed data model. No table of the model is
// created when one is returned.
type SchemaError struct {
	Table  string
	Reason string
}

func NewSchemaError(table, reason string) *SchemaError {
	return &SchemaError{Table: table, Reason: reason}
}

func (e *SchemaError) Error() string {
	if e.Table == "" {
		return e.Reason
	}
	return fmt.Sprintf("table %s: %s", e.Table, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }
