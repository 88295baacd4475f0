package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"
	"notesync-server/internal/websocket"
	"notesync-server/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const msgNoteDeleted = "Note has been deleted"

// CollabService runs the realtime protocol: joining rooms, applying edits
// with optimistic concurrency and keeping presence current.
//
// Every join and edit for a note runs under that note's lock, so the
// version read, the conditional write and the fan-out of one edit never
// interleave with another edit of the same note.
type CollabService struct {
	hub      *websocket.Hub
	access   *AccessResolver
	notes    repository.NoteRepository
	versions repository.NoteVersionRepository
	names    *NameCache
	locks    *noteLocks
	log      *zap.Logger
}

func NewCollabService(
	hub *websocket.Hub,
	access *AccessResolver,
	notes repository.NoteRepository,
	versions repository.NoteVersionRepository,
	names *NameCache,
	log *zap.Logger,
) *CollabService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CollabService{
		hub:      hub,
		access:   access,
		notes:    notes,
		versions: versions,
		names:    names,
		locks:    newNoteLocks(),
		log:      log,
	}
}

// DisplayName resolves the name shown in presence lists.
func (s *CollabService) DisplayName(ctx context.Context, userID string) string {
	return s.names.Resolve(ctx, userID)
}

// Join admits client to the room for noteID. The owner and any collaborator
// may join; view-only collaborators are rejected later, at edit time.
func (s *CollabService) Join(ctx context.Context, client *websocket.Client, noteID string) error {
	unlock := s.locks.Lock(noteID)
	access, err := s.access.Resolve(ctx, noteID, client.UserID)
	if err != nil {
		unlock()
		return err
	}
	if !access.CanView() {
		unlock()
		return ErrAccessDenied
	}

	previous := s.hub.Admit(noteID, client)
	client.Send(websocket.NewJoined(access.Note.Snapshot()))
	unlock()

	s.log.Debug("client joined note",
		zap.String("client_id", client.ID),
		zap.String("note_id", noteID),
		zap.String("previous_note_id", previous),
	)

	s.hub.Announce(previous)
	s.hub.Announce(noteID)
	return nil
}

// Edit applies an edit from client. Edits for a note other than the one the
// client has joined are ignored. A stale version is answered with a resync
// rather than an error.
func (s *CollabService) Edit(ctx context.Context, client *websocket.Client, req websocket.EditRequest) error {
	if s.hub.CurrentNote(client) != req.NoteID {
		return nil
	}

	unlock := s.locks.Lock(req.NoteID)
	defer unlock()

	access, err := s.access.Resolve(ctx, req.NoteID, client.UserID)
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			metrics.EditsTotal.WithLabelValues(metrics.EditDenied).Inc()
		} else {
			metrics.EditsTotal.WithLabelValues(metrics.EditFailed).Inc()
		}
		return err
	}
	if !access.CanEdit() {
		metrics.EditsTotal.WithLabelValues(metrics.EditDenied).Inc()
		return ErrAccessDenied
	}

	current := access.Note
	if *req.Version < current.Version {
		metrics.EditsTotal.WithLabelValues(metrics.EditStale).Inc()
		client.Send(websocket.NewResync(current.Snapshot()))
		return nil
	}

	updated, err := s.apply(ctx, current, func() (*domain.Note, error) {
		return s.notes.UpdateContent(ctx, current.ID, *req.Content, current.Version)
	})
	if err != nil {
		var stale *StaleVersionError
		if errors.As(err, &stale) {
			metrics.EditsTotal.WithLabelValues(metrics.EditStale).Inc()
			client.Send(websocket.NewResync(stale.Current.Snapshot()))
			return nil
		}
		if errors.Is(err, ErrNoteNotFound) {
			metrics.EditsTotal.WithLabelValues(metrics.EditDenied).Inc()
		} else {
			metrics.EditsTotal.WithLabelValues(metrics.EditFailed).Inc()
		}
		return err
	}

	s.recordHistory(ctx, current)

	s.hub.Broadcast(req.NoteID, websocket.NewEdit(updated.ID, updated.Content, updated.Version), client)
	client.Send(websocket.NewEditAck(updated.ID, updated.Version))
	metrics.EditsTotal.WithLabelValues(metrics.EditApplied).Inc()

	return nil
}

// apply runs write, which must be conditioned on current.Version. Losing the
// race to a writer outside this process yields a StaleVersionError with the
// new state.
func (s *CollabService) apply(ctx context.Context, current *domain.Note, write func() (*domain.Note, error)) (*domain.Note, error) {
	updated, err := write()
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrNoteNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		latest, findErr := s.notes.FindByID(ctx, current.ID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to reload note after conflict: %w", findErr)
		}
		return nil, &StaleVersionError{Current: latest}
	}
	return nil, fmt.Errorf("failed to update note: %w", err)
}

// Revise applies a request/response update to a note under the same lock
// and version condition as realtime edits. Only the owner may move the note
// between folders; a collaborator's folder change is ignored. Occupants of
// the room receive the new state as a resync.
func (s *CollabService) Revise(ctx context.Context, userID, noteID string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	unlock := s.locks.Lock(noteID)
	defer unlock()

	access, err := s.access.Resolve(ctx, noteID, userID)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit() {
		return nil, ErrAccessDenied
	}

	current := access.Note
	if req.Version != nil && *req.Version < current.Version {
		return nil, &StaleVersionError{Current: current}
	}

	next := *current
	if req.Title != nil {
		next.Title = *req.Title
	}
	if req.Content != nil {
		next.Content = *req.Content
	}
	if req.FolderID != nil && access.IsOwner {
		next.FolderID = nil
		if *req.FolderID != "" {
			folderID := *req.FolderID
			next.FolderID = &folderID
		}
	}

	updated, err := s.apply(ctx, current, func() (*domain.Note, error) {
		return s.notes.Update(ctx, &next, current.Version)
	})
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, current)
	s.hub.Broadcast(noteID, websocket.NewResync(updated.Snapshot()), nil)
	metrics.EditsTotal.WithLabelValues(metrics.EditApplied).Inc()

	return updated, nil
}

// Remove deletes a note. Owner only. Clients in its room are told and moved
// out of it.
func (s *CollabService) Remove(ctx context.Context, userID, noteID string) error {
	unlock := s.locks.Lock(noteID)
	defer unlock()

	access, err := s.access.Resolve(ctx, noteID, userID)
	if err != nil {
		return err
	}
	if !access.IsOwner {
		return ErrAccessDenied
	}

	if err := s.notes.Delete(ctx, noteID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoteNotFound
		}
		return fmt.Errorf("failed to delete note: %w", err)
	}

	evicted := s.hub.CloseRoom(noteID, websocket.NewError(msgNoteDeleted))
	s.log.Info("note deleted", zap.String("note_id", noteID), zap.Int("evicted", evicted))
	return nil
}

// recordHistory appends the pre-edit snapshot. Failures are logged only.
func (s *CollabService) recordHistory(ctx context.Context, before *domain.Note) {
	err := s.versions.Append(ctx, &domain.NoteVersion{
		ID:        uuid.New().String(),
		NoteID:    before.ID,
		Title:     before.Title,
		Content:   before.Content,
		Version:   before.Version,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("failed to record note history",
			zap.String("note_id", before.ID),
			zap.Int64("version", before.Version),
			zap.Error(err),
		)
	}
}

// Leave evicts client from its room. noteID defaults to the joined note; a
// note the client is not in is ignored.
func (s *CollabService) Leave(ctx context.Context, client *websocket.Client, noteID string) {
	current := s.hub.CurrentNote(client)
	if current == "" || (noteID != "" && noteID != current) {
		return
	}

	left := s.hub.Evict(client)
	s.hub.Announce(left)
}

// Disconnect unregisters client and refreshes presence for the room it was in.
func (s *CollabService) Disconnect(ctx context.Context, client *websocket.Client) {
	noteID := s.hub.Unregister(client)
	s.hub.Announce(noteID)
}
