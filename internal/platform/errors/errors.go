package errors

import (
	stderrors "errors"
)

// Error is the typed data error carried end-to-end from the transport to the
// reducer.
type Error struct {
	Kind    Kind   // Layer that produced the error
	Code    Code   // Machine-readable error code
	Message string // Internal message (for logs)
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind) + " " + string(e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind and code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// Terminal reports whether the error ends the session view.
func (e *Error) Terminal() bool {
	return e.Kind.Terminal()
}

// MessageKey returns the catalog key for this error.
func (e *Error) MessageKey() string {
	return MessageKey(e.Kind, e.Code)
}

// New creates a data error. Codes that do not belong to kind collapse to
// CodeUnknown so the taxonomy stays closed.
func New(kind Kind, code Code, message string) *Error {
	if !kind.valid(code) {
		code = CodeUnknown
	}
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap creates a data error that wraps an underlying cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	e := New(kind, code, message)
	e.Cause = cause
	return e
}

// HTTP creates a terminal error.
func HTTP(code Code, message string) *Error {
	return New(KindHTTP, code, message)
}

// WebSocket creates a recoverable realtime channel error.
func WebSocket(code Code, message string) *Error {
	return New(KindWebSocket, code, message)
}

// Local creates a collaborator error.
func Local(code Code, message string) *Error {
	return New(KindLocal, code, message)
}

// As extracts a data error from err. Errors that are not part of the
// taxonomy are normalized to a recoverable WebSocket unknown error.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var target *Error
	if stderrors.As(err, &target) {
		return target
	}
	return Wrap(KindWebSocket, CodeUnknown, err.Error(), err)
}
