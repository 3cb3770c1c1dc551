// Package apierr defines the error taxonomy of the journaling core: each
// kind has its own constructor returning an APIError that carries a
// machine-readable code, an HTTP status, and a user-safe message, instead of
// sentinel values or bare errors.New.
package apierr

import (
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeUnauthorized        Code = "unauthorized"
	CodeForbidden           Code = "forbidden"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeUpstreamTimeout     Code = "upstream_timeout"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeStructuringFailed   Code = "structuring_failed"
	CodeInternal            Code = "internal_error"
)

// APIError is the interface satisfied by every error kind in this package.
// httpapi maps it to an HTTP response using Status/Code/SafeMessage and
// never leaks the underlying Go error text.
type APIError interface {
	error
	Status() int
	Code() Code
	SafeMessage() string
}

type baseError struct {
	code    Code
	status  int
	message string
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *baseError) Unwrap() error       { return e.cause }
func (e *baseError) Status() int         { return e.status }
func (e *baseError) Code() Code          { return e.code }
func (e *baseError) SafeMessage() string { return e.message }

// Validation reports malformed input, a missing field, or an invalid enum.
func Validation(message string) error {
	return &baseError{code: CodeValidation, status: http.StatusBadRequest, message: message}
}

// Unauthorized reports a missing or invalid bearer token.
func Unauthorized(message string) error {
	if message == "" {
		message = "missing or invalid credentials"
	}
	return &baseError{code: CodeUnauthorized, status: http.StatusUnauthorized, message: message}
}

// Forbidden reports a valid token with insufficient access.
func Forbidden(message string) error {
	return &baseError{code: CodeForbidden, status: http.StatusForbidden, message: message}
}

// NotFound reports a user-scoped lookup that produced no row. It is also the
// correct response for a resource the caller does not own: 404, not 403, to
// avoid existence leaks.
func NotFound(message string) error {
	if message == "" {
		message = "resource not found"
	}
	return &baseError{code: CodeNotFound, status: http.StatusNotFound, message: message}
}

// Conflict reports an invariant violation (duplicate username, reorder not
// covering every incomplete task, etc).
func Conflict(message string) error {
	return &baseError{code: CodeConflict, status: http.StatusConflict, message: message}
}

// UpstreamTimeout reports that an LLM call exceeded its deadline.
func UpstreamTimeout(cause error) error {
	return &baseError{code: CodeUpstreamTimeout, status: http.StatusServiceUnavailable, message: "the assistant timed out, please try again", cause: cause}
}

// UpstreamUnavailable reports an LLM transport failure.
func UpstreamUnavailable(cause error) error {
	return &baseError{code: CodeUpstreamUnavailable, status: http.StatusServiceUnavailable, message: "the assistant is temporarily unavailable", cause: cause}
}

// StructuringFailed reports that the LLM returned non-JSON or malformed
// output while structuring a journal entry. This never surfaces as an HTTP
// 5xx; callers convert it into a clarifying assistant reply instead of
// propagating it to the edge.
func StructuringFailed(cause error) error {
	return &baseError{code: CodeStructuringFailed, status: http.StatusOK, message: "could not understand how to structure that", cause: cause}
}

// Internal reports an unexpected failure. cause is logged with a
// correlation id by the caller; it is never included in SafeMessage.
func Internal(cause error) error {
	return &baseError{code: CodeInternal, status: http.StatusInternalServerError, message: "an unexpected error occurred", cause: cause}
}

// As extracts an APIError from err, returning (nil, false) if err does not
// carry one (or is nil), in which case the caller should treat it as Internal.
func As(err error) (APIError, bool) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if ae, ok := e.(APIError); ok {
			return ae, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			return nil, false
		}
		e = u.Unwrap()
	}
	return nil, false
}
