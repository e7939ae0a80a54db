package http

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
)

// Error categories returned in the "error" field of every error body.
const (
	CategoryBadRequest         = "Bad Request"
	CategoryNoDataFound        = "No Data Found"
	CategoryNoPriceData        = "No Price Data"
	CategoryUpstreamAPI        = "Bitquery API Error"
	CategoryServiceUnavailable = "Service Unavailable"
	CategoryTooManyRequests    = "Too Many Requests"
	CategoryInternal           = "Internal Server Error"
)

// AppError represents application-level error with HTTP status.
// It serialises as a flat object: {"error", "message", ...params}.
type AppError struct {
	Category string
	Message  string
	Params   map[string]interface{}
	Status   int
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// MarshalJSON flattens params next to error and message.
func (e *AppError) MarshalJSON() ([]byte, error) {
	body := make(map[string]interface{}, len(e.Params)+2)
	for k, v := range e.Params {
		body[k] = v
	}
	body["error"] = e.Category
	body["message"] = e.Message
	return sonic.ConfigStd.Marshal(body)
}

// NewAppError creates a new application error.
func NewAppError(status int, category, message string) *AppError {
	return &AppError{
		Category: category,
		Message:  message,
		Status:   status,
		Params:   make(map[string]interface{}),
	}
}

// WithParams merges error params.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	for k, v := range params {
		e.WithParam(k, v)
	}
	return e
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CategoryBadRequest, message)
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// NotFoundError creates a 404 error under the given category.
func NotFoundError(category, message string) *AppError {
	return NewAppError(http.StatusNotFound, category, message)
}

// UpstreamError creates a 400 error for provider-reported query failures.
func UpstreamError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CategoryUpstreamAPI, message)
}

// ServiceUnavailableError creates a 503 error.
func ServiceUnavailableError(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, CategoryServiceUnavailable, message)
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, CategoryTooManyRequests, message)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, CategoryInternal, message)
}

// InternalErrorf creates a 500 error with formatting.
func InternalErrorf(format string, a ...interface{}) *AppError {
	return InternalError(fmt.Sprintf(format, a...))
}
