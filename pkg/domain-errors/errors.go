// Package domainerrors provides coded domain errors shared across services.
//
// Services return these so handlers can map them to HTTP responses without
// string matching. Infrastructure facts (not found, expired) live in
// pkg/platform/sentinel; stores return sentinels and services translate them
// into coded domain errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	// CodeInvalidFlowConfiguration marks a flow definition the compiler
	// rejected. Fatal to that compilation attempt; nothing is partially
	// compiled.
	CodeInvalidFlowConfiguration Code = "invalid_flow_configuration"

	// CodeInvalidSession marks a step submission that does not belong to the
	// session it targets (tenant or client mismatch).
	CodeInvalidSession Code = "invalid_session"
)

// Error is a domain error with a machine-checkable code and a human-readable
// message. The wrapped cause, if any, is preserved for errors.Is/As.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another domain error by code and message, letting callers use
// errors.Is against a freshly constructed value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is delegates to errors.Is so callers need not import both packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
