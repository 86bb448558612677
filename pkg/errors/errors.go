package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrUpstreamFetch  = errors.New("candidate fetch failed")
	ErrFlightNotFound = errors.New("flight not found")
	ErrFlightExists   = errors.New("flight already exists")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Field      string
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Err.Error(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidFilter reports a rejected request parameter along with the field
// that caused the rejection.
func InvalidFilter(field, format string, args ...any) *AppError {
	return &AppError{
		Err:        ErrInvalidFilter,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusBadRequest,
		Field:      field,
	}
}

// UpstreamFetch wraps a failure of the candidate store so callers can tell
// it apart from engine-side errors.
func UpstreamFetch(cause error) *AppError {
	return &AppError{
		Err:        ErrUpstreamFetch,
		Message:    cause.Error(),
		StatusCode: http.StatusServiceUnavailable,
	}
}

// FieldOf returns the offending field recorded on err, or "".
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrFlightNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFlightExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUpstreamFetch), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
