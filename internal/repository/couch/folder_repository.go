package couch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"github.com/go-kivik/kivik/v4"
)

type folderDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Folder
}

type folderRepository struct {
	client *kivik.Client
	dbName string
}

func NewFolderRepository(client *kivik.Client, dbName string) repository.FolderRepository {
	return &folderRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *folderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	db := r.client.DB(r.dbName)

	doc := folderDoc{DocType: docTypeFolder, Folder: *folder}
	if _, err := db.Put(ctx, folderDocID(folder.ID), doc); err != nil {
		if errors.Is(translate(err), repository.ErrVersionConflict) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

func (r *folderRepository) get(ctx context.Context, id string) (*folderDoc, error) {
	db := r.client.DB(r.dbName)

	var doc folderDoc
	if err := db.Get(ctx, folderDocID(id)).ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("failed to find folder: %w", translate(err))
	}

	return &doc, nil
}

func (r *folderRepository) FindByID(ctx context.Context, id string) (*domain.Folder, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &doc.Folder, nil
}

func (r *folderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Folder, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": docTypeFolder,
			"owner_id": ownerID,
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		var doc folderDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		folder := doc.Folder
		folders = append(folders, &folder)
	}

	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

func (r *folderRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	if _, err := db.Delete(ctx, folderDocID(id), doc.Rev); err != nil {
		return fmt.Errorf("failed to delete folder: %w", translate(err))
	}

	return nil
}
