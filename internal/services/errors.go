package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service matches exactly one of these
// with errors.Is.
var (
	ErrDomainRejected        = errors.New("DomainRejected")
	ErrDuplicateEmail        = errors.New("DuplicateEmail")
	ErrInvalidCredentials    = errors.New("InvalidCredentials")
	ErrUnauthenticated       = errors.New("Unauthenticated")
	ErrNotAuthorized         = errors.New("NotAuthorized")
	ErrNotFound              = errors.New("NotFound")
	ErrInvalidTransition     = errors.New("InvalidTransition")
	ErrValidationFailed      = errors.New("ValidationFailed")
	ErrProfileCreationFailed = errors.New("ProfileCreationFailed")
	ErrDependencyUnavailable = errors.New("DependencyUnavailable")
)

// Error is a classified service error. Msg is safe to show to the caller; Cause
// is for logs only.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// unavailable classifies an infrastructure failure.
func unavailable(cause error, op string) error {
	return &Error{Kind: ErrDependencyUnavailable, Msg: op, Cause: cause}
}

// Message returns the caller-facing text for err, or "" when err is unclassified.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return ""
}
