package models

import (
	"errors"
	"fmt"
)

// ErrCollaboratorUnavailable marks failures of the extractor or calendar that
// leave a batch with nothing to work on.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// CollaboratorError names the collaborator that failed.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorUnavailable, e.Err}
}

// Unavailable wraps err as a CollaboratorError.
func Unavailable(collaborator string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}
