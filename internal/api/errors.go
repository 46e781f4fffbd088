package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the uniform typed failure produced by handlers and middleware.
// Anything that is not an *Error is reported as an internal error at the
// response boundary without exposing its message to callers.
type Error struct {
	Status  int
	Message string
	Details []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// BadRequest reports malformed or missing input or a business-rule violation.
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// Unauthenticated reports a missing or invalid credential chain.
func Unauthenticated(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// Forbidden reports an authenticated caller that is not authorized.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

// NotFound reports a referenced entity that does not exist.
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

// Conflict reports a write that would violate a uniqueness constraint.
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Message: message}
}

// Internal reports an unexpected server-side failure.
func Internal(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message}
}

// AsError extracts an *Error from err's chain when present.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
