package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error unwraps to exactly one of these.
var (
	// ErrValidation indicates malformed input or an unknown reference.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates the action is not legal from the current status.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent modification was detected.
	ErrConflict = errors.New("concurrent modification")
	// ErrUnauthenticated indicates the acting user is missing.
	ErrUnauthenticated = errors.New("acting user required")
)

// DomainError carries a stable code callers can switch on.
type DomainError struct {
	Kind    error
	Code    string
	Message string
	Fields  map[string]string
}

// NewDomainError builds a DomainError of the given kind.
func NewDomainError(kind error, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the kind so errors.Is(err, ErrValidation) works.
func (e *DomainError) Unwrap() error {
	return e.Kind
}

// Is matches another DomainError by code so package sentinels work with errors.Is
// after being wrapped with call-site context.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && t.Kind == e.Kind
}

// WithMessage copies e with a more specific message, keeping its identity.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Fields: e.Fields}
}

// WithFields copies e with per-field details.
func (e *DomainError) WithFields(fields map[string]string) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: e.Message, Fields: fields}
}

// ErrorCode returns the code of the first DomainError in the chain.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ErrorFields returns field level details of the first DomainError in the chain.
func ErrorFields(err error) map[string]string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// UserSafeMessage returns a message that can be shown to callers.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err.Error()
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err.Error()
	}
	return "internal error"
}
