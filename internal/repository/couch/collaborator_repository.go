package couch

import (
	"context"
	"fmt"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"github.com/go-kivik/kivik/v4"
)

type collaboratorDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Collaborator
}

type collaboratorRepository struct {
	client *kivik.Client
	dbName string
}

func NewCollaboratorRepository(client *kivik.Client, dbName string) repository.CollaboratorRepository {
	return &collaboratorRepository{
		client: client,
		dbName: dbName,
	}
}

// Upsert keys the document by (note, user) so a pair can never hold two grants.
func (r *collaboratorRepository) Upsert(ctx context.Context, collaborator *domain.Collaborator) error {
	db := r.client.DB(r.dbName)
	docID := collaboratorDocID(collaborator.NoteID, collaborator.UserID)

	doc := collaboratorDoc{DocType: docTypeCollaborator, Collaborator: *collaborator}

	var existing collaboratorDoc
	err := db.Get(ctx, docID).ScanDoc(&existing)
	switch {
	case err == nil:
		doc.Rev = existing.Rev
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
	case !isNotFound(err):
		return fmt.Errorf("failed to load collaborator: %w", translate(err))
	}

	if _, err := db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to save collaborator: %w", translate(err))
	}

	*collaborator = doc.Collaborator
	return nil
}

func (r *collaboratorRepository) Find(ctx context.Context, noteID, userID string) (*domain.Collaborator, error) {
	db := r.client.DB(r.dbName)

	var doc collaboratorDoc
	if err := db.Get(ctx, collaboratorDocID(noteID, userID)).ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("failed to find collaborator: %w", translate(err))
	}

	return &doc.Collaborator, nil
}

func (r *collaboratorRepository) ListByNote(ctx context.Context, noteID string) ([]*domain.Collaborator, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeCollaborator,
			"note_id":  noteID,
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []*domain.Collaborator
	for rows.Next() {
		var doc collaboratorDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		c := doc.Collaborator
		collaborators = append(collaborators, &c)
	}

	return collaborators, nil
}

func (r *collaboratorRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Collaborator, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeCollaborator,
			"user_id":  userID,
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list collaborations: %w", err)
	}
	defer rows.Close()

	var collaborators []*domain.Collaborator
	for rows.Next() {
		var doc collaboratorDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		c := doc.Collaborator
		collaborators = append(collaborators, &c)
	}

	return collaborators, nil
}
