package bus

import (
	"errors"
	"fmt"
)

// Kind is a surface-visible failure code carried across the bus. Only the
// component that observed the failure authors a kind; everyone upstream
// forwards it unchanged.
type Kind string

const (
	KindInvalidBody     Kind = "INVALID_BODY"
	KindConnectionError Kind = "CONNECTION_ERROR"
	KindTimeout         Kind = "TIMEOUT"
	KindInternal        Kind = "INTERNAL"
)

// Failure is the error type exchanged over the bus.
type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFailure creates a failure with a formatted diagnostic message.
func NewFailure(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsFailure extracts a Failure from an error chain. Errors that never crossed
// the bus come back as KindInternal so callers always see a known kind.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: KindInternal, Message: err.Error()}
}
