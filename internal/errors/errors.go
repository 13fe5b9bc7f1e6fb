package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies a disclosure processing error.
type ErrorType string

const (
	// ErrTypeFormat indicates an unparseable period label.
	ErrTypeFormat ErrorType = "FORMAT"
	// ErrTypeTypeMismatch indicates a cell violating its column schema.
	ErrTypeTypeMismatch ErrorType = "TYPE_MISMATCH"
	// ErrTypeSchema indicates a structural violation of the table invariants.
	ErrTypeSchema ErrorType = "SCHEMA"
	// ErrTypeAmbiguity indicates two non-redundant claims for one cell. A
	// validated table can never produce this; it means the validator itself
	// is defective.
	ErrTypeAmbiguity ErrorType = "AMBIGUITY"
	// ErrTypeValidation wraps any of the above during ingestion, annotated
	// with the offending entity and locator.
	ErrTypeValidation ErrorType = "VALIDATION"
)

// DisclosureError is the error type shared by the period, disclosure and
// ingest packages. Row is zero-based; -1 means no row locator.
type DisclosureError struct {
	Type    ErrorType
	Message string
	Entity  string
	Row     int
	Column  string
	Cause   error
}

// Error implements the error interface
func (e *DisclosureError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Entity != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Entity, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap allows errors.Is and errors.As to work with DisclosureError
func (e *DisclosureError) Unwrap() error {
	return e.Cause
}

// WithEntity annotates the error with the offending entity name.
func (e *DisclosureError) WithEntity(entity string) *DisclosureError {
	e.Entity = entity
	return e
}

// WithLocator annotates the error with a row/column locator.
func (e *DisclosureError) WithLocator(row int, column string) *DisclosureError {
	e.Row = row
	e.Column = column
	return e
}

func newError(errType ErrorType, message string, cause error) *DisclosureError {
	return &DisclosureError{
		Type:    errType,
		Message: message,
		Row:     -1,
		Cause:   cause,
	}
}

// NewFormatError creates an error for an unparseable period label.
func NewFormatError(format string, args ...any) *DisclosureError {
	return newError(ErrTypeFormat, fmt.Sprintf(format, args...), nil)
}

// NewTypeMismatchError creates an error for a cell violating its column type.
func NewTypeMismatchError(format string, args ...any) *DisclosureError {
	return newError(ErrTypeTypeMismatch, fmt.Sprintf(format, args...), nil)
}

// NewSchemaError creates an error for a structural table violation.
func NewSchemaError(format string, args ...any) *DisclosureError {
	return newError(ErrTypeSchema, fmt.Sprintf(format, args...), nil)
}

// NewAmbiguityError creates an internal-consistency error. Callers treat it
// as fatal, not recoverable.
func NewAmbiguityError(format string, args ...any) *DisclosureError {
	return newError(ErrTypeAmbiguity, fmt.Sprintf(format, args...), nil)
}

// NewValidationError wraps a lower-level error discovered while ingesting the
// named entity's raw record.
func NewValidationError(entity string, cause error) *DisclosureError {
	e := newError(ErrTypeValidation, "disclosure record failed validation", cause)
	e.Entity = entity

	// Hoist the locator from the wrapped error so diagnostics stay intact.
	var inner *DisclosureError
	if stderrors.As(cause, &inner) {
		e.Row = inner.Row
		e.Column = inner.Column
	}
	return e
}

// IsType reports whether err is (or wraps) a DisclosureError of the given type.
func IsType(err error, errType ErrorType) bool {
	for {
		var de *DisclosureError
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Cause
	}
}
