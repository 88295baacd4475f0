package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"gorm.io/gorm"
)

type folderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) repository.FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	m := folderModel{
		ID:        folder.ID,
		OwnerID:   folder.OwnerID,
		Name:      folder.Name,
		CreatedAt: folder.CreatedAt,
		UpdatedAt: folder.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(translate(err), repository.ErrAlreadyExists) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (r *folderRepository) FindByID(ctx context.Context, id string) (*domain.Folder, error) {
	var m folderModel
	if err := r.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to find folder: %w", translate(err))
	}
	return m.toDomain(), nil
}

func (r *folderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Folder, error) {
	var models []folderModel
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name asc").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	folders := make([]*domain.Folder, 0, len(models))
	for i := range models {
		folders = append(folders, models[i].toDomain())
	}
	return folders, nil
}

func (r *folderRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&folderModel{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete folder: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
