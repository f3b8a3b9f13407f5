// Package apperr classifies domain errors so transport layers can map them
// without knowing every sentinel a service defines.
package apperr

import "errors"

// Error kinds. Domain errors wrap exactly one of these.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("dependency unavailable")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with the given message that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Unavailable wraps a collaborator failure so callers can tell it apart from
// a business rejection. The original cause stays in the chain.
func Unavailable(dependency string, cause error) error {
	return &unavailableError{dependency: dependency, cause: cause}
}

type unavailableError struct {
	dependency string
	cause      error
}

func (e *unavailableError) Error() string {
	return e.dependency + " unavailable: " + e.cause.Error()
}

func (e *unavailableError) Unwrap() []error { return []error{ErrUnavailable, e.cause} }

// Kind reports which kind err belongs to, or nil if it is unclassified.
func Kind(err error) error {
	for _, k := range []error{ErrUnauthorized, ErrNotFound, ErrValidation, ErrConflict, ErrUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
