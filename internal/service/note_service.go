package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 50
	shareCodeLength     = 10
	shareCodeAttempts   = 3
)

// NoteService is the request/response side of notes. Writes to an existing
// note are handed to CollabService so they share its per-note lock.
type NoteService struct {
	notes         repository.NoteRepository
	versions      repository.NoteVersionRepository
	collaborators repository.CollaboratorRepository
	users         repository.UserRepository
	folders       repository.FolderRepository
	access        *AccessResolver
	collab        *CollabService
}

func NewNoteService(
	notes repository.NoteRepository,
	versions repository.NoteVersionRepository,
	collaborators repository.CollaboratorRepository,
	users repository.UserRepository,
	folders repository.FolderRepository,
	access *AccessResolver,
	collab *CollabService,
) *NoteService {
	return &NoteService{
		notes:         notes,
		versions:      versions,
		collaborators: collaborators,
		users:         users,
		folders:       folders,
		access:        access,
		collab:        collab,
	}
}

func (s *NoteService) Create(ctx context.Context, userID string, req *domain.CreateNoteRequest) (*domain.Note, error) {
	folderID := req.FolderID
	if folderID != nil && *folderID == "" {
		folderID = nil
	}
	if folderID != nil {
		if _, err := ownedFolder(ctx, s.folders, userID, *folderID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	note := &domain.Note{
		ID:        uuid.New().String(),
		OwnerID:   userID,
		FolderID:  folderID,
		Title:     req.Title,
		Content:   req.Content,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.notes.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return note, nil
}

func (s *NoteService) List(ctx context.Context, userID string) ([]*domain.Note, error) {
	return s.notes.ListByOwner(ctx, userID)
}

// Update changes title, content or folder of a note the caller can edit. A
// target folder must belong to the caller.
func (s *NoteService) Update(ctx context.Context, userID, noteID string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	if req.FolderID != nil && *req.FolderID != "" {
		if _, err := ownedFolder(ctx, s.folders, userID, *req.FolderID); err != nil {
			return nil, err
		}
	}
	return s.collab.Revise(ctx, userID, noteID, req)
}

// Delete removes a note with its grants and history. Owner only.
func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	return s.collab.Remove(ctx, userID, noteID)
}

func (s *NoteService) ListByFolder(ctx context.Context, userID, folderID string) ([]*domain.Note, error) {
	if _, err := ownedFolder(ctx, s.folders, userID, folderID); err != nil {
		return nil, err
	}
	return s.notes.ListByFolder(ctx, userID, folderID)
}

// Search looks through the caller's own notes. A blank query matches nothing.
func (s *NoteService) Search(ctx context.Context, userID, query string) ([]*domain.Note, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Note{}, nil
	}
	return s.notes.Search(ctx, userID, query)
}

// SharedWithMe lists the notes userID holds a grant on, most recently
// updated first.
func (s *NoteService) SharedWithMe(ctx context.Context, userID string) ([]*domain.SharedNote, error) {
	grants, err := s.collaborators.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string)
	shared := make([]*domain.SharedNote, 0, len(grants))
	for _, grant := range grants {
		note, err := s.notes.FindByID(ctx, grant.NoteID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load note: %w", err)
		}

		ownerName, ok := owners[note.OwnerID]
		if !ok {
			ownerName = s.ownerName(ctx, note.OwnerID)
			owners[note.OwnerID] = ownerName
		}

		shared = append(shared, &domain.SharedNote{
			ID:         note.ID,
			Title:      note.Title,
			Content:    note.Content,
			Version:    note.Version,
			UpdatedAt:  note.UpdatedAt,
			Permission: grant.Permission,
			OwnerName:  ownerName,
		})
	}

	sort.SliceStable(shared, func(i, j int) bool { return shared[i].UpdatedAt.After(shared[j].UpdatedAt) })
	return shared, nil
}

func (s *NoteService) ownerName(ctx context.Context, ownerID string) string {
	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return ""
	}
	if owner.Name != "" {
		return owner.Name
	}
	return owner.Email
}

// CreateShareLink gives the note a new public read-only code, replacing any
// previous one. Owner only.
func (s *NoteService) CreateShareLink(ctx context.Context, ownerID, noteID string) (*domain.ShareLink, error) {
	if err := s.requireOwner(ctx, ownerID, noteID); err != nil {
		return nil, err
	}

	var err error
	for attempt := 0; attempt < shareCodeAttempts; attempt++ {
		code := newShareCode()
		err = s.notes.SetShareCode(ctx, noteID, code)
		switch {
		case err == nil:
			return &domain.ShareLink{NoteID: noteID, ShareCode: code}, nil
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNoteNotFound
		case !errors.Is(err, repository.ErrAlreadyExists):
			return nil, fmt.Errorf("failed to save share code: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to allocate share code: %w", err)
}

// GetShared resolves a share code without authentication.
func (s *NoteService) GetShared(ctx context.Context, code string) (*domain.Snapshot, error) {
	note, err := s.notes.FindByShareCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to load shared note: %w", err)
	}

	snapshot := note.Snapshot()
	return &snapshot, nil
}

func newShareCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:shareCodeLength]
}

// Get returns the note if userID owns it or holds any grant on it.
func (s *NoteService) Get(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	access, err := s.access.Resolve(ctx, noteID, userID)
	if err != nil {
		return nil, err
	}
	if !access.CanView() {
		return nil, ErrAccessDenied
	}
	return access.Note, nil
}

// History returns up to limit pre-edit snapshots, newest first. Owner only.
func (s *NoteService) History(ctx context.Context, userID, noteID string, limit int) ([]*domain.NoteVersion, error) {
	if err := s.requireOwner(ctx, userID, noteID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	return s.versions.ListByNote(ctx, noteID, limit)
}

// Share creates or replaces the grant for req.UserID. Owner only.
func (s *NoteService) Share(ctx context.Context, ownerID, noteID string, req *domain.GrantRequest) (*domain.Collaborator, error) {
	if err := s.requireOwner(ctx, ownerID, noteID); err != nil {
		return nil, err
	}

	if req.UserID == ownerID {
		return nil, ErrInvalidGrant
	}

	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := time.Now().UTC()
	grant := &domain.Collaborator{
		ID:         uuid.New().String(),
		NoteID:     noteID,
		UserID:     req.UserID,
		Permission: req.Permission,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.collaborators.Upsert(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to save collaborator: %w", err)
	}

	return grant, nil
}

func (s *NoteService) Collaborators(ctx context.Context, ownerID, noteID string) ([]*domain.Collaborator, error) {
	if err := s.requireOwner(ctx, ownerID, noteID); err != nil {
		return nil, err
	}
	return s.collaborators.ListByNote(ctx, noteID)
}

func (s *NoteService) requireOwner(ctx context.Context, userID, noteID string) error {
	access, err := s.access.Resolve(ctx, noteID, userID)
	if err != nil {
		return err
	}
	if !access.IsOwner {
		return ErrAccessDenied
	}
	return nil
}
