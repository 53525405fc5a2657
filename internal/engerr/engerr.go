// Package engerr defines the engine's error taxonomy as sentinel kinds, so
// callers can classify with errors.Is/errors.As instead of string matching.
package engerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error taxonomy's fixed categories.
type Kind int

const (
	KindConfig Kind = iota
	KindFeedStale
	KindInsufficientData
	KindValidation
	KindTransientExecution
	KindFatalExecution
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config_error"
	case KindFeedStale:
		return "feed_stale"
	case KindInsufficientData:
		return "insufficient_data"
	case KindValidation:
		return "validation_error"
	case KindTransientExecution:
		return "transient_execution_error"
	case KindFatalExecution:
		return "fatal_execution_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying a Kind and an optional set of reasons.
// Detectors and the rolling window use it for insufficient data, and the
// supervisor for fatal execution failures.
type Error struct {
	Kind    Kind
	Msg     string
	Reasons []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func WithReasons(kind Kind, msg string, reasons ...string) *Error {
	return &Error{Kind: kind, Msg: msg, Reasons: reasons}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

var (
	ErrConfig              = New(KindConfig, "invalid configuration")
	ErrFeedStale           = New(KindFeedStale, "no valid ticks within max age")
	ErrInsufficientData    = New(KindInsufficientData, "too few samples")
	ErrCancelled           = New(KindCancelled, "operation cancelled")
	ErrFatalExecution      = New(KindFatalExecution, "execution step failed after retries")
	ErrTransientExecution  = New(KindTransientExecution, "venue timeout or rate limit")
	ErrValidationFailed    = New(KindValidation, "plan failed validation")
)
