package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/kunoai/kuno-engine/internal/api/shared"
	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/service"
	"github.com/kunoai/kuno-engine/internal/task"
)

// ErrUploadTooLarge is returned when an upload exceeds the configured limit.
var ErrUploadTooLarge = errors.New("upload too large")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var fieldErrs validator.ValidationErrors
	switch {
	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyStructure),
		errors.Is(err, shared.ErrInvalidRequestBody),
		errors.Is(err, service.ErrInvalidFilename),
		errors.Is(err, generation.ErrInvalidSettings),
		errors.As(err, &fieldErrs):
		return http.StatusBadRequest

	case errors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge

	// Not found errors
	case errors.Is(err, service.ErrFileNotFound):
		return http.StatusNotFound

	// Shutting down
	case errors.Is(err, task.ErrRunnerStopped):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErr):
		return SanitizeValidationError(validationErr)

	case errors.As(err, &fieldErrs) && len(fieldErrs) > 0:
		return "Invalid " + fieldErrs[0].Field() + ": " + getValidationTagMessage(fieldErrs[0].Tag())

	case errors.Is(err, generation.ErrInvalidSettings):
		return "Invalid settings"

	case errors.Is(err, ErrUploadTooLarge):
		return "Upload too large"

	case errors.Is(err, shared.ErrInvalidRequestBody):
		return "Invalid request body"

	case errors.Is(err, service.ErrInvalidFilename):
		return "Invalid file name"

	case errors.Is(err, service.ErrFileNotFound):
		return "File not found"

	case errors.Is(err, task.ErrRunnerStopped):
		return "Server is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validation error into a client-facing
// message naming the field and the broken rule.
func SanitizeValidationError(err *domain.ValidationError) string {
	if errors.Is(err, domain.ErrEmptyStructure) {
		return "Invalid structure: must contain at least one section"
	}
	if err.Field == "" {
		return "Validation error"
	}
	if err.Tag != "" {
		return "Invalid " + err.Field + ": " + getValidationTagMessage(err.Tag)
	}
	return "Invalid " + err.Field
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too few items"
	case "max":
		return "too long"
	case "gt", "gte":
		return "value too small"
	case "lt", "lte":
		return "value too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
