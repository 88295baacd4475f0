package repository

import (
	"context"
	"errors"

	"notesync-server/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by conditional updates when the stored
	// version no longer matches the expected one.
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("record already exists")
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error)
	// UpdateContent sets content and increments the version by exactly one,
	// only if the stored version equals expectedVersion.
	UpdateContent(ctx context.Context, id, content string, expectedVersion int64) (*domain.Note, error)
	// Update writes title, content and folder from note under the same
	// version condition as UpdateContent.
	Update(ctx context.Context, note *domain.Note, expectedVersion int64) (*domain.Note, error)
	// Delete removes the note together with its grants and history.
	Delete(ctx context.Context, id string) error
	ListByFolder(ctx context.Context, ownerID, folderID string) ([]*domain.Note, error)
	// Search matches query case-insensitively against title and content.
	Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error)
	FindByShareCode(ctx context.Context, code string) (*domain.Note, error)
	SetShareCode(ctx context.Context, id, code string) error
	// ClearFolder moves every note of ownerID out of folderID.
	ClearFolder(ctx context.Context, ownerID, folderID string) error
}

type CollaboratorRepository interface {
	Upsert(ctx context.Context, collaborator *domain.Collaborator) error
	Find(ctx context.Context, noteID, userID string) (*domain.Collaborator, error)
	ListByNote(ctx context.Context, noteID string) ([]*domain.Collaborator, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Collaborator, error)
}

type FolderRepository interface {
	Create(ctx context.Context, folder *domain.Folder) error
	FindByID(ctx context.Context, id string) (*domain.Folder, error)
	// ListByOwner orders folders by name.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Folder, error)
	Delete(ctx context.Context, id string) error
}

type NoteVersionRepository interface {
	Append(ctx context.Context, version *domain.NoteVersion) error
	// ListByNote returns at most limit versions, newest first.
	ListByNote(ctx context.Context, noteID string, limit int) ([]*domain.NoteVersion, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Repositories bundles one backend's implementations.
type Repositories struct {
	Notes         NoteRepository
	Collaborators CollaboratorRepository
	Versions      NoteVersionRepository
	Users         UserRepository
	Folders       FolderRepository
}
