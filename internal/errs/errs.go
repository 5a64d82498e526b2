// Package errs provides the single error type used across the alpharng
// module, following the kind-plus-wrapped-cause pattern used throughout the
// surrounding codebase.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error so callers can branch on failure category without
// parsing message text.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindProtocol   Kind = "protocol"
	KindSession    Kind = "session"
	KindAuth       Kind = "auth"
	KindHealthTest Kind = "health_test"
	KindConfig     Kind = "config"
	KindTimeout    Kind = "timeout"
	KindInternal   Kind = "internal"
)

// Error wraps a Kind and an optional cause with a human-readable message.
// The cause chain is preserved so errors.Is/errors.As keep working.
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

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind and message to an existing error, annotating the
// cause with a stack trace via github.com/pkg/errors.WithStack.
func Wrap(kind Kind, cause error, message string) *Error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, Cause: errors.WithStack(cause)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return Wrap(kind, cause, fmt.Sprintf(format, args...))
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
