package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows its HTTP status and wire code.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates an application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam attaches a machine-readable detail.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logging and errors.Is.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func statusError(status int, code string) func(string) *AppError {
	return func(message string) *AppError {
		return NewAppError(code, "", message, status)
	}
}

var (
	// BadRequestError is a 400: malformed input or an invalid outcome.
	BadRequestError = statusError(http.StatusBadRequest, "ERR_BAD_REQUEST")
	// NotFoundError is a 404: unknown snapshot, position or decision.
	NotFoundError = statusError(http.StatusNotFound, "ERR_NOT_FOUND")
	// ConflictError is a 409: a scalp is already open or cooling down.
	ConflictError = statusError(http.StatusConflict, "ERR_CONFLICT")
	// UnprocessableError is a 422: the gate denied the request.
	UnprocessableError = statusError(http.StatusUnprocessableEntity, "ERR_DENIED")
	// TooManyRequestsError is a 429.
	TooManyRequestsError = statusError(http.StatusTooManyRequests, "ERR_RATE_LIMITED")
	// UnavailableError is a 503: the service is shutting down or the caller gave up.
	UnavailableError = statusError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE")
	// InternalError is a 500.
	InternalError = statusError(http.StatusInternalServerError, "ERR_INTERNAL")
)

// NotFoundErrorf creates a 404 error with formatting.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}
