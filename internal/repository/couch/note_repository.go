package couch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"github.com/go-kivik/kivik/v4"
)

type noteDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Note
}

type noteRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteRepository(client *kivik.Client, dbName string) repository.NoteRepository {
	return &noteRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	db := r.client.DB(r.dbName)

	doc := noteDoc{DocType: docTypeNote, Note: *note}
	if _, err := db.Put(ctx, noteDocID(note.ID), doc); err != nil {
		if errors.Is(translate(err), repository.ErrVersionConflict) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

func (r *noteRepository) get(ctx context.Context, id string) (*noteDoc, error) {
	db := r.client.DB(r.dbName)

	var doc noteDoc
	if err := db.Get(ctx, noteDocID(id)).ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("failed to find note: %w", translate(err))
	}

	return &doc, nil
}

func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &doc.Note, nil
}

func (r *noteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	return r.find(ctx, map[string]interface{}{
		"doc_type": docTypeNote,
		"owner_id": ownerID,
	})
}

func (r *noteRepository) ListByFolder(ctx context.Context, ownerID, folderID string) ([]*domain.Note, error) {
	return r.find(ctx, map[string]interface{}{
		"doc_type":  docTypeNote,
		"owner_id":  ownerID,
		"folder_id": folderID,
	})
}

// Search uses a case-insensitive Mango $regex over the quoted query.
func (r *noteRepository) Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error) {
	pattern := map[string]interface{}{"$regex": "(?i)" + regexp.QuoteMeta(query)}
	return r.find(ctx, map[string]interface{}{
		"doc_type": docTypeNote,
		"owner_id": ownerID,
		"$or": []interface{}{
			map[string]interface{}{"title": pattern},
			map[string]interface{}{"content": pattern},
		},
	})
}

// find runs a Mango query and orders the result most recently updated first.
func (r *noteRepository) find(ctx context.Context, selector map[string]interface{}) ([]*domain.Note, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(ctx, map[string]interface{}{"selector": selector})
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		note := doc.Note
		notes = append(notes, &note)
	}

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].UpdatedAt.After(notes[j].UpdatedAt) })
	return notes, nil
}

func (r *noteRepository) FindByShareCode(ctx context.Context, code string) (*domain.Note, error) {
	notes, err := r.find(ctx, map[string]interface{}{
		"doc_type":   docTypeNote,
		"share_code": code,
	})
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, repository.ErrNotFound
	}
	return notes[0], nil
}

// SetShareCode has no unique index to lean on, so it looks the code up first.
func (r *noteRepository) SetShareCode(ctx context.Context, id, code string) error {
	existing, err := r.FindByShareCode(ctx, code)
	switch {
	case err == nil && existing.ID != id:
		return repository.ErrAlreadyExists
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return err
	}

	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	doc.ShareCode = &code

	db := r.client.DB(r.dbName)
	if _, err := db.Put(ctx, noteDocID(id), doc); err != nil {
		return fmt.Errorf("failed to set share code: %w", translate(err))
	}
	return nil
}

func (r *noteRepository) ClearFolder(ctx context.Context, ownerID, folderID string) error {
	db := r.client.DB(r.dbName)

	rows := db.Find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":  docTypeNote,
			"owner_id":  ownerID,
			"folder_id": folderID,
		},
	})
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list folder notes: %w", err)
	}
	defer rows.Close()

	var docs []noteDoc
	for rows.Next() {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	for i := range docs {
		docs[i].FolderID = nil
		if _, err := db.Put(ctx, noteDocID(docs[i].ID), docs[i]); err != nil {
			return fmt.Errorf("failed to clear folder on note %s: %w", docs[i].ID, translate(err))
		}
	}
	return nil
}

// Delete removes grants and history before the note itself.
func (r *noteRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	for _, docType := range []string{docTypeCollaborator, docTypeNoteVersion} {
		selector := map[string]interface{}{"doc_type": docType, "note_id": id}
		if err := deleteMatching(ctx, db, selector); err != nil {
			return fmt.Errorf("failed to delete %s documents: %w", docType, err)
		}
	}

	if _, err := db.Delete(ctx, noteDocID(id), doc.Rev); err != nil {
		return fmt.Errorf("failed to delete note: %w", translate(err))
	}
	return nil
}

// UpdateContent relies on the document revision for atomicity: the Put carries
// the _rev that was read, so a concurrent writer makes CouchDB answer 409.
func (r *noteRepository) UpdateContent(ctx context.Context, id, content string, expectedVersion int64) (*domain.Note, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if doc.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	doc.Content = content
	doc.Version = expectedVersion + 1
	doc.UpdatedAt = time.Now().UTC()

	db := r.client.DB(r.dbName)
	if _, err := db.Put(ctx, noteDocID(id), doc); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", translate(err))
	}

	return &doc.Note, nil
}

func (r *noteRepository) Update(ctx context.Context, note *domain.Note, expectedVersion int64) (*domain.Note, error) {
	doc, err := r.get(ctx, note.ID)
	if err != nil {
		return nil, err
	}

	if doc.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	doc.Title = note.Title
	doc.Content = note.Content
	doc.FolderID = note.FolderID
	doc.Version = expectedVersion + 1
	doc.UpdatedAt = time.Now().UTC()

	db := r.client.DB(r.dbName)
	if _, err := db.Put(ctx, noteDocID(note.ID), doc); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", translate(err))
	}

	return &doc.Note, nil
}
