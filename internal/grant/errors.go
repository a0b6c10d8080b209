package grant

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised while filling a form
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNoFieldFound
	KindWriteFailure
	KindNavigationFailure
	KindSurfaceUnreachable
	KindMalformedSource
	KindNotFound
	KindInvalidInput
)

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindNoFieldFound:
		return "NO_FIELD_FOUND"
	case KindWriteFailure:
		return "WRITE_FAILURE"
	case KindNavigationFailure:
		return "NAVIGATION_FAILURE"
	case KindSurfaceUnreachable:
		return "SURFACE_UNREACHABLE"
	case KindMalformedSource:
		return "MALFORMED_SOURCE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidInput:
		return "INVALID_INPUT"
	default:
		return "UNKNOWN"
	}
}

// Fatal reports whether an error of this kind aborts a whole fill run.
// Everything else is recorded against a single question or page.
func (k ErrorKind) Fatal() bool {
	return k == KindSurfaceUnreachable || k == KindNotFound || k == KindInvalidInput
}

// Error is a classified error with the operation that raised it
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError creates a classified error
func NewError(kind ErrorKind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
