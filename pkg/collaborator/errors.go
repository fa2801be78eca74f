package collaborator

import (
	"errors"
	"fmt"
)

// Error wraps a failure reported by a collaborator. Only these failures count
// toward circuit breaker accounting; caller-side validation errors do not.
type Error struct {
	Collaborator string // Collaborator name, e.g. "generator:fanvue"
	Op           string // Operation being performed
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("collaborator %s: %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a collaborator-reported failure.
func NewError(collaborator, op string, err error) *Error {
	return &Error{Collaborator: collaborator, Op: op, Err: err}
}

// IsCollaboratorError reports whether err originates from a collaborator and
// should therefore drive breaker and retry accounting.
func IsCollaboratorError(err error) bool {
	var target *Error

	return errors.As(err, &target)
}
