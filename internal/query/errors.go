package query

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrQueryArgument = errors.New("query argument error")

type QueryError struct {
	msg      string
	status   int
	argument bool
}

func NewQueryError(status int, msg string) *QueryError {
	return &QueryError{msg: msg, status: status}
}

// NewQueryArgumentError reports a malformed query. It is always raised
// before anything is written.
func NewQueryArgumentError(format string, a ...any) *QueryError {
	return &QueryError{msg: fmt.Sprintf(format, a...), status: http.StatusBadRequest, argument: true}
}

func (e QueryError) Error() string { return e.msg }
func (e QueryError) Status() int   { return e.status }

func (e QueryError) Is(target error) bool {
	return e.argument && target == ErrQueryArgument
}

func tableNotFound(name string) *QueryError {
	return NewQueryError(http.StatusNotFound, fmt.Sprintf("Table %s not found", name))
}
