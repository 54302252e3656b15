package service

import (
	"errors"
	"fmt"
)

// Common service errors. Callers check for them with errors.Is and the API
// layer maps them to HTTP status codes.
var (
	// ErrInvalidFilename indicates a requested audio file name that is empty or
	// tries to leave the output directory.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidFilename = errors.New("invalid file name")

	// ErrFileNotFound indicates that the requested audio file does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrFileNotFound = errors.New("file not found")
)

// GenerationServiceError wraps unexpected errors from the generation service with context.
type GenerationServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "reset")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for GenerationServiceError.
func (e *GenerationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GenerationServiceError) Unwrap() error {
	return e.Err
}

// NewGenerationServiceError creates a new GenerationServiceError.
// It returns known sentinel errors directly without wrapping.
func NewGenerationServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidFilename) {
		return ErrInvalidFilename
	}
	if errors.Is(err, ErrFileNotFound) {
		return ErrFileNotFound
	}

	return &GenerationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
