// Package opserr defines the error kinds the operational core reports to its
// callers. Every primary-path failure is tagged with a Kind so the HTTP layer
// can map it to a status code without string matching.
package opserr

import (
	"errors"
	"fmt"
)

// Kind classifies an operational error.
type Kind int

const (
	// KindInternal is the fallback for unexpected failures.
	KindInternal Kind = iota
	// KindValidation marks a missing or malformed request field.
	KindValidation
	// KindNotFound marks a reference to a row that does not exist.
	KindNotFound
	// KindInvalidTransition marks a fault status edge outside the allowed set.
	KindInvalidTransition
	// KindInsufficientStock marks a debit larger than the available quantity.
	KindInsufficientStock
	// KindConflict marks an optimistic-concurrency version mismatch.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a kinded operational error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kinded error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindInternal if err is not kinded.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
