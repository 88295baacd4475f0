package service

import (
	"context"
	"errors"
	"fmt"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"
)

// AccessResolver loads a note together with the caller's relationship to it.
type AccessResolver struct {
	notes         repository.NoteRepository
	collaborators repository.CollaboratorRepository
}

func NewAccessResolver(notes repository.NoteRepository, collaborators repository.CollaboratorRepository) *AccessResolver {
	return &AccessResolver{notes: notes, collaborators: collaborators}
}

// Resolve returns ErrNoteNotFound when the note does not exist. A user with no
// grant gets an Access with an empty permission.
func (r *AccessResolver) Resolve(ctx context.Context, noteID, userID string) (*domain.Access, error) {
	note, err := r.notes.FindByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to load note: %w", err)
	}

	access := &domain.Access{Note: note, IsOwner: note.OwnerID == userID}
	if access.IsOwner {
		return access, nil
	}

	grant, err := r.collaborators.Find(ctx, noteID, userID)
	switch {
	case err == nil:
		access.Permission = grant.Permission
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load collaborator: %w", err)
	}

	return access, nil
}
