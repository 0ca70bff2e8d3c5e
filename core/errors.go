package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return NewValidationError(errors.New(msg), FieldError{Field: field, Error: msg})
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Error kinds the API layer maps to a response status.
var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
)

// Error is a domain error of a given kind carrying a client-facing message.
type Error struct {
	kind error
	msg  string
}

func NewNotFoundError(msg string) error   { return &Error{kind: ErrNotFound, msg: msg} }
func NewPermissionError(msg string) error { return &Error{kind: ErrPermission, msg: msg} }
func NewConflictError(msg string) error   { return &Error{kind: ErrConflict, msg: msg} }

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() error { return e.kind }

func (e *Error) Is(target error) bool { return e.kind == target }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
