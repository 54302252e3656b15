package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when the generator cannot produce audio
	ErrGenerationFailed = errors.New("audio generation failed")

	// ErrEnhancementFailed is returned when mastering the raw audio fails
	ErrEnhancementFailed = errors.New("audio enhancement failed")

	// ErrReleaseFailed is returned when unloading the shared pipeline fails
	ErrReleaseFailed = errors.New("pipeline release failed")

	// ErrInvalidConfig is returned when a pipeline adapter is misconfigured
	ErrInvalidConfig = errors.New("invalid pipeline configuration")

	// ErrInvalidSettings is returned when a runtime settings update is rejected
	ErrInvalidSettings = errors.New("invalid pipeline settings")
)
