// Package errs defines the typed error kinds shared across Scarab's
// components, so the control channel can report a stable code instead of
// a free-form string.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a Scarab error. Values match the error taxonomy in
// the control-channel error-handling design.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota
	// KindProtocol covers bad magic, bad frame, unknown type, oversized payload.
	KindProtocol
	// KindNotFound covers "no such session".
	KindNotFound
	// KindConflict covers session-name, shm-name, or socket already in use.
	KindConflict
	// KindChildSpawn covers fork/exec failure.
	KindChildSpawn
	// KindIO covers PTY or socket read/write failure.
	KindIO
	// KindTimeout covers a graceful-close timeout.
	KindTimeout
	// KindInvalid covers a bad parameter (zero rows, rows > max, etc).
	KindInvalid
	// KindClosed covers an already-closed session or connection.
	KindClosed
	// KindOverflow is a warning, not a failure: the dirty ring collapsed
	// to a full-redraw sentinel.
	KindOverflow
)

// String returns the wire-stable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "Protocol"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindChildSpawn:
		return "ChildSpawn"
	case KindIO:
		return "Io"
	case KindTimeout:
		return "Timeout"
	case KindInvalid:
		return "Invalid"
	case KindClosed:
		return "Closed"
	case KindOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise returns KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
