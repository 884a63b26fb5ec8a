package errors

import "fmt"

// Code classifies a SimpleCP error.
type Code string

const (
	ErrValidation    Code = "VALIDATION"    // empty/invalid input, rejected before I/O
	ErrNotFound      Code = "NOT_FOUND"     // entity does not exist locally
	ErrConfiguration Code = "CONFIGURATION" // no interpreter/script found, fatal to supervisor start
	ErrTransport     Code = "TRANSPORT"     // connection-level failure, retryable
	ErrProtocol      Code = "PROTOCOL"      // non-2xx HTTP status
	ErrDecoding      Code = "DECODING"      // malformed response body, non-retryable
	ErrPersistence   Code = "PERSISTENCE"   // local encode/write failure, advisory
	ErrInternal      Code = "INTERNAL"      // unexpected internal failure
)

// Error is a structured error with a code, message, optional detail fields,
// and a retryability flag consumed by the sync client's retry policy.
type Error struct {
	Code      Code
	Message   string
	Details   map[string]any
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidation creates an error for invalid input rejected before any I/O.
func NewValidation(msg string) *Error {
	return &Error{
		Code:    ErrValidation,
		Message: msg,
	}
}

// NewNotFound creates an error for a missing local entity.
func NewNotFound(kind, identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewConfiguration creates a fatal configuration error (e.g. no backend
// interpreter or entry script could be discovered).
func NewConfiguration(msg string) *Error {
	return &Error{
		Code:    ErrConfiguration,
		Message: msg,
	}
}

// NewTransport creates a retryable connection-level error.
func NewTransport(err error) *Error {
	return &Error{
		Code:      ErrTransport,
		Message:   err.Error(),
		Retryable: true,
		Cause:     err,
	}
}

// NewProtocol creates an error for a non-2xx HTTP response. Server-side
// statuses (5xx) plus 408 and 429 are retryable; other client errors are not.
func NewProtocol(status int, body string) *Error {
	retryable := status >= 500 || status == 408 || status == 429
	return &Error{
		Code:      ErrProtocol,
		Message:   fmt.Sprintf("backend returned HTTP %d", status),
		Details:   map[string]any{"status": status, "body": body},
		Retryable: retryable,
	}
}

// NewDecoding creates a non-retryable error for a malformed response body.
func NewDecoding(err error) *Error {
	return &Error{
		Code:    ErrDecoding,
		Message: fmt.Sprintf("failed to decode response: %v", err),
		Cause:   err,
	}
}

// NewInvalidResponse creates an error for an unparseable or unexpected
// response shape, treated as possibly transient and therefore retryable.
func NewInvalidResponse(msg string) *Error {
	return &Error{
		Code:      ErrProtocol,
		Message:   msg,
		Retryable: true,
	}
}

// NewPersistence creates an advisory error for a local persistence failure.
// In-memory state remains authoritative when one of these is reported.
func NewPersistence(key string, err error) *Error {
	return &Error{
		Code:    ErrPersistence,
		Message: fmt.Sprintf("failed to persist %s: %v", key, err),
		Details: map[string]any{"key": key},
		Cause:   err,
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is an Error with the given code.
func Is(err error, code Code) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// IsRetryable reports whether err may succeed on a later attempt. Unknown
// error types are treated as non-retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// StatusNotFound reports whether err is a protocol error carrying HTTP 404.
// The sync client treats 404 on snippet update/delete as success: the entity
// was local-only or already gone remotely.
func StatusNotFound(err error) bool {
	e, ok := err.(*Error)
	if !ok || e.Code != ErrProtocol {
		return false
	}
	status, ok := e.Details["status"].(int)
	return ok && status == 404
}
