package sqlstore

import (
	"context"
	"fmt"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"gorm.io/gorm"
)

type noteVersionRepository struct {
	db *gorm.DB
}

func NewNoteVersionRepository(db *gorm.DB) repository.NoteVersionRepository {
	return &noteVersionRepository{db: db}
}

func (r *noteVersionRepository) Append(ctx context.Context, version *domain.NoteVersion) error {
	m := noteVersionModel{
		ID:        version.ID,
		NoteID:    version.NoteID,
		Title:     version.Title,
		Content:   version.Content,
		Version:   version.Version,
		CreatedAt: version.CreatedAt,
	}

	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save version: %w", translate(err))
	}
	return nil
}

func (r *noteVersionRepository) ListByNote(ctx context.Context, noteID string, limit int) ([]*domain.NoteVersion, error) {
	q := r.db.WithContext(ctx).Where("note_id = ?", noteID).Order("version desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []noteVersionModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]*domain.NoteVersion, 0, len(models))
	for i := range models {
		versions = append(versions, models[i].toDomain())
	}
	return versions, nil
}
