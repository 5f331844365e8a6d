package diagnosis

import (
	"errors"
	"fmt"

	model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrDuplicateSession        = errors.New("session already exists")
	ErrInvalidTurn             = model.ErrInvalidTurn
	ErrSessionClosed           = errors.New("session is closed")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// CollaboratorError wraps a failure of an external collaborator such as a
// classifier or the reply generator.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is matches ErrCollaboratorUnavailable.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}
