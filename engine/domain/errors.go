package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidQuery   = errors.New("invalid query")
	ErrEmptyQuery     = errors.New("query text is empty")
	ErrQueryTooLong   = errors.New("query text too long")
	ErrInvalidChunkID = errors.New("invalid chunk id")
	ErrEmptyPage      = errors.New("page content is empty")
	ErrMissingPageID  = errors.New("page id is missing")
	ErrMissingSource  = errors.New("page source is missing")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
