// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound indicates no archived run exists for the identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidSample indicates an engagement sample failed validation.
	ErrInvalidSample = errors.New("invalid engagement sample")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op       string // Operation being performed, e.g. "AppendRun"
	Workflow string // Workflow name if applicable
	Err      error
}

func (e *StoreError) Error() string {
	if e.Workflow != "" {
		return fmt.Sprintf("%s failed for workflow %s: %v", e.Op, e.Workflow, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, workflow string, err error) *StoreError {
	return &StoreError{Op: op, Workflow: workflow, Err: err}
}
