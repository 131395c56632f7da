package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/tobsdb/tobsql"
	"github.com/tobsdb/tobsql/internal/builder"
	"github.com/tobsdb/tobsql/internal/query"
	"github.com/tobsdb/tobsql/pkg"
)

type RequestAction string

const (
	RequestActionExecute RequestAction = "execute"
	RequestActionExtend  RequestAction = "extend"
)

type Request struct {
	Action  RequestAction    `json:"action"`
	Table   string           `json:"table"`
	Query   []query.Modifier `json:"query"`
	Command string           `json:"command"`
	Args    []any            `json:"args"`
	ReqId   int              `json:"id"`
}

type Response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// echoed back from the request
	ReqId int `json:"id"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status}
}

func NewResponse(status int, message string, data any) Response {
	return Response{Data: data, Message: message, Status: status}
}

// ErrorStatus maps an error returned by the database to a response status.
func ErrorStatus(err error) int {
	var query_error *query.QueryError
	var schema_error *builder.SchemaError
	switch {
	case errors.As(err, &query_error):
		return query_error.Status()
	case errors.As(err, &schema_error):
		return http.StatusBadRequest
	case errors.Is(err, tobsql.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Handle decodes one request and runs it on db.
func Handle(ctx context.Context, db *tobsql.DB, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	res := HandleRequest(ctx, db, req)
	res.ReqId = req.ReqId
	return res
}

func HandleRequest(ctx context.Context, db *tobsql.DB, req Request) Response {
	switch req.Action {
	case RequestActionExecute:
		return executeHandler(ctx, db, req)
	case RequestActionExtend:
		return extendHandler(ctx, db, req)
	default:
		return NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func executeHandler(ctx context.Context, db *tobsql.DB, req Request) Response {
	if req.Table == "" {
		return NewErrorResponse(http.StatusBadRequest, "table is required")
	}
	res, err := db.Execute(ctx, req.Table, req.Query...)
	if err != nil {
		return NewErrorResponse(ErrorStatus(err), err.Error())
	}

	if res.Change == nil {
		return NewResponse(
			http.StatusOK,
			fmt.Sprintf("Found %d rows in table %s", len(res.Rows), res.Table),
			res.Rows,
		)
	}

	status := http.StatusOK
	if res.Change.Describe == builder.ChangeInserted {
		status = http.StatusCreated
	}
	return NewResponse(
		status,
		fmt.Sprintf("%s %d rows in table %s", res.Change.Describe, res.Change.AffectedCount, res.Table),
		res.Change,
	)
}

func extendHandler(ctx context.Context, db *tobsql.DB, req Request) Response {
	if req.Command == "" {
		return NewErrorResponse(http.StatusBadRequest, "command is required")
	}
	res, err := db.Extend(ctx, req.Command, req.Args...)
	if err != nil {
		return NewErrorResponse(ErrorStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK, fmt.Sprintf("Ran %s", req.Command), res)
}

// Serve reads newline delimited requests from r and writes one response
// line per request to w until r is exhausted or ctx ends.
func Serve(ctx context.Context, db *tobsql.DB, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		res := Handle(ctx, db, line)
		if res.Status >= http.StatusInternalServerError {
			pkg.ErrorLog("request failed:", res.Message)
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	return scanner.Err()
}
