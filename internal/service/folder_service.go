package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"github.com/google/uuid"
)

type FolderService struct {
	folders repository.FolderRepository
	notes   repository.NoteRepository
}

func NewFolderService(folders repository.FolderRepository, notes repository.NoteRepository) *FolderService {
	return &FolderService{folders: folders, notes: notes}
}

func (s *FolderService) Create(ctx context.Context, ownerID string, req *domain.CreateFolderRequest) (*domain.Folder, error) {
	now := time.Now().UTC()
	folder := &domain.Folder{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return folder, nil
}

func (s *FolderService) List(ctx context.Context, ownerID string) ([]*domain.Folder, error) {
	return s.folders.ListByOwner(ctx, ownerID)
}

// Delete removes the folder. Its notes are kept and moved out of it.
func (s *FolderService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := ownedFolder(ctx, s.folders, ownerID, id); err != nil {
		return err
	}

	if err := s.notes.ClearFolder(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.folders.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFolderNotFound
		}
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

// ownedFolder returns ErrFolderNotFound for folders of other users too.
func ownedFolder(ctx context.Context, folders repository.FolderRepository, ownerID, id string) (*domain.Folder, error) {
	folder, err := folders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to load folder: %w", err)
	}
	if folder.OwnerID != ownerID {
		return nil, ErrFolderNotFound
	}
	return folder, nil
}
