package couch

import (
	"context"
	"errors"
	"fmt"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"github.com/go-kivik/kivik/v4"
)

type noteVersionDoc struct {
	DocType string `json:"doc_type"`
	domain.NoteVersion
}

type noteVersionRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteVersionRepository(client *kivik.Client, dbName string) repository.NoteVersionRepository {
	return &noteVersionRepository{
		client: client,
		dbName: dbName,
	}
}

// Append stores the snapshot under version:<note>:<version>. The pre-edit
// version is unique per note, so a conflict means the snapshot already exists.
func (r *noteVersionRepository) Append(ctx context.Context, version *domain.NoteVersion) error {
	db := r.client.DB(r.dbName)

	doc := noteVersionDoc{DocType: docTypeNoteVersion, NoteVersion: *version}
	if _, err := db.Put(ctx, versionDocID(version.NoteID, version.Version), doc); err != nil {
		if errors.Is(translate(err), repository.ErrVersionConflict) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to save version: %w", err)
	}

	return nil
}

func (r *noteVersionRepository) ListByNote(ctx context.Context, noteID string, limit int) ([]*domain.NoteVersion, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeNoteVersion,
			"note_id":  noteID,
		},
		"sort": []map[string]string{
			{"doc_type": "desc"},
			{"note_id": "desc"},
			{"version": "desc"},
		},
		"limit": limit,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.NoteVersion
	for rows.Next() {
		var doc noteVersionDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		v := doc.NoteVersion
		versions = append(versions, &v)
	}

	return versions, nil
}
