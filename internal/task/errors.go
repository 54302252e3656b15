package task

import (
	"errors"
	"fmt"
)

// Common errors returned by task stores
var (
	// ErrNotFound is returned when no record exists for the id.
	ErrNotFound = errors.New("task not found")

	// ErrDuplicateID is returned by Create when the id is already in use.
	ErrDuplicateID = errors.New("task id already exists")

	// ErrTaskFinalized is returned when mutating a completed or failed record.
	ErrTaskFinalized = errors.New("task already finalized")

	// ErrInvalidStatus is returned when a patch carries an unknown status.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrRunnerStopped is returned by Submit after Stop.
	ErrRunnerStopped = errors.New("task runner is stopped")
)

// StoreError adds the failed operation and task id to an underlying error.
type StoreError struct {
	Operation string
	TaskID    string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("task store %s %q: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(op, id string, err error) error {
	return &StoreError{Operation: op, TaskID: id, Err: err}
}
