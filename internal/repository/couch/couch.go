package couch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"notesync-server/internal/repository"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
)

const (
	docTypeNote         = "note"
	docTypeCollaborator = "collaborator"
	docTypeNoteVersion  = "note_version"
	docTypeUser         = "user"
	docTypeFolder       = "folder"

	designDoc = "notesync"
)

// Connect opens the CouchDB server at url and makes sure dbName exists.
func Connect(ctx context.Context, url, dbName string) (*kivik.Client, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return client, nil
}

// EnsureIndexes creates the Mango indexes the repositories query with.
func EnsureIndexes(ctx context.Context, client *kivik.Client, dbName string) error {
	db := client.DB(dbName)

	indexes := map[string][]string{
		"by-owner":         {"doc_type", "owner_id"},
		"by-note":          {"doc_type", "note_id"},
		"versions-by-note": {"doc_type", "note_id", "version"},
		"by-email":         {"doc_type", "email"},
		"by-user":          {"doc_type", "user_id"},
		"by-share-code":    {"doc_type", "share_code"},
		"by-folder":        {"doc_type", "owner_id", "folder_id"},
	}

	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, designDoc, name, index); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return nil
}

// New builds all repositories on top of one CouchDB database.
func New(client *kivik.Client, dbName string) *repository.Repositories {
	return &repository.Repositories{
		Notes:         NewNoteRepository(client, dbName),
		Collaborators: NewCollaboratorRepository(client, dbName),
		Versions:      NewNoteVersionRepository(client, dbName),
		Users:         NewUserRepository(client, dbName),
		Folders:       NewFolderRepository(client, dbName),
	}
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func collaboratorDocID(noteID, userID string) string {
	return fmt.Sprintf("collab:%s:%s", noteID, userID)
}

func versionDocID(noteID string, version int64) string {
	return fmt.Sprintf("version:%s:%d", noteID, version)
}

func userDocID(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func folderDocID(id string) string {
	return fmt.Sprintf("folder:%s", id)
}

// deleteMatching removes every document the selector matches.
func deleteMatching(ctx context.Context, db *kivik.DB, selector map[string]interface{}) error {
	query := map[string]interface{}{
		"selector": selector,
		"fields":   []string{"_id", "_rev"},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return err
	}
	defer rows.Close()

	type docRef struct {
		ID  string `json:"_id"`
		Rev string `json:"_rev"`
	}

	var refs []docRef
	for rows.Next() {
		var ref docRef
		if err := rows.ScanDoc(&ref); err != nil {
			continue
		}
		refs = append(refs, ref)
	}

	for _, ref := range refs {
		if _, err := db.Delete(ctx, ref.ID, ref.Rev); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete %s: %w", ref.ID, translate(err))
		}
	}

	return nil
}

// translate maps CouchDB status codes onto repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}

	switch kivik.HTTPStatus(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", repository.ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %v", repository.ErrVersionConflict, err)
	}

	return err
}

func isNotFound(err error) bool {
	return errors.Is(translate(err), repository.ErrNotFound)
}
