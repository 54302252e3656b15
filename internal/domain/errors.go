package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a song request fails validation.
	// It is always wrapped by a ValidationError naming the field.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyStructure is returned when a request has no structure sections.
	ErrEmptyStructure = errors.New("song structure cannot be empty")
)

// ValidationError names the field that failed and the rule it broke.
type ValidationError struct {
	Field   string
	Tag     string // validator rule, when one applies
	Message string
	Err     error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Message)
	}
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError wrapping err.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}
