// Package apperrors defines the coded error type shared across the service.
// Handlers map codes onto HTTP statuses; everything below the handler layer
// returns *Error values so callers can branch on the code rather than on
// message text.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and logging.
type Code string

const (
	ErrCodeValidation   Code = "VALIDATION"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeConflict     Code = "CONFLICT"
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	ErrCodeInternal     Code = "INTERNAL"
)

// Error is a coded application error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates a cause with a code and message. Returns nil when err is
// nil. The return type is error, not *Error, so that the nil case stays a
// nil interface at call sites that pass it straight through.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports that a named resource does not exist.
func NotFound(resource, id string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resource, id)
}

// InvalidInput reports a rejected request field.
func InvalidInput(field, reason string) *Error {
	return Newf(ErrCodeValidation, "invalid %s: %s", field, reason)
}

// Conflict reports a state conflict (wrong status, stale version, duplicate).
func Conflict(message string) *Error {
	return New(ErrCodeConflict, message)
}

// CodeOf extracts the code from an error chain, defaulting to ErrCodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus maps an error chain onto an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
