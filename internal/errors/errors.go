// Package errors provides error handling for enty.
//
// It re-exports github.com/cockroachdb/errors and adds the sentinel
// kinds the service layers classify failures with:
//
//	// validation failure bound to a request field
//	return errors.Invalid("title", "title is required")
//
//	// duplicate: a validation failure that is also a conflict
//	return errors.Duplicate("title", "entity class already exists")
//
//	// classify at the edge
//	switch {
//	case errors.Is(err, errors.ErrNotFound):
//	case errors.Is(err, errors.ErrInvalid):
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinel kinds. Wrap or Mark these to keep the kind while adding context.
var (
	// ErrInvalid indicates missing, oversized or otherwise malformed input.
	ErrInvalid = New("invalid input")

	// ErrNotFound indicates a referenced class, instance or fact does not exist.
	ErrNotFound = New("not found")

	// ErrConflict indicates a duplicate title within its uniqueness scope.
	ErrConflict = New("conflict")

	// ErrDanglingReference indicates an ENTITY-typed value that names no existing instance.
	ErrDanglingReference = New("dangling reference")

	// ErrDisabled indicates an operation switched off by deployment configuration.
	ErrDisabled = New("disabled")

	ErrUnauthorized = New("unauthorized")
	ErrForbidden    = New("forbidden")
)

// FieldError is a validation failure attached to one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid returns a field validation error marked as ErrInvalid.
func Invalid(field, message string) error {
	return Mark(WithStack(&FieldError{Field: field, Message: message}), ErrInvalid)
}

// Duplicate returns a field validation error marked as both ErrInvalid and ErrConflict.
func Duplicate(field, message string) error {
	return Mark(Invalid(field, message), ErrConflict)
}

// NotFound returns an error marked as ErrNotFound naming the missing thing.
func NotFound(what string) error {
	return Mark(Newf("%s not found", what), ErrNotFound)
}

// Dangling returns an error marked as ErrDanglingReference.
func Dangling(field, message string) error {
	return Mark(WithStack(&FieldError{Field: field, Message: message}), ErrDanglingReference)
}

// Disabled returns an error marked as ErrDisabled.
func Disabled(message string) error {
	return Mark(New(message), ErrDisabled)
}

// FieldOf extracts the offending field from a validation error, if any.
func FieldOf(err error) (string, bool) {
	var fe *FieldError
	if As(err, &fe) {
		return fe.Field, true
	}
	return "", false
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool {
	return err != nil && Is(err, ErrInvalid)
}
