package bitquery

import (
	"errors"
	"fmt"
)

// ErrUnknownReport is returned for a report without a query document.
var ErrUnknownReport = errors.New("bitquery: unknown report")

// QueryError carries the GraphQL errors returned by the provider.
type QueryError struct {
	Message string
	Details []any
}

func (e *QueryError) Error() string {
	return "bitquery: " + e.Message
}

// StatusError is returned for a non-2xx provider response.
type StatusError struct {
	Status  int
	Message string
	Body    any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bitquery: status %d: %s", e.Status, e.Message)
}

// ShapeError is returned when the provider response does not match the
// expected document shape.
type ShapeError struct {
	Report string
	Err    error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("bitquery: unexpected %s response shape: %v", e.Report, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

func queryError(list []any) *QueryError {
	msg := "GraphQL query error"
	if len(list) > 0 {
		if m, ok := list[0].(map[string]any); ok {
			if s, ok := m["message"].(string); ok && s != "" {
				msg = s
			}
		}
	}
	return &QueryError{Message: msg, Details: list}
}
