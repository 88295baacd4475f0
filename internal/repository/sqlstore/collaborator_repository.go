package sqlstore

import (
	"context"
	"fmt"
	"time"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type collaboratorRepository struct {
	db *gorm.DB
}

func NewCollaboratorRepository(db *gorm.DB) repository.CollaboratorRepository {
	return &collaboratorRepository{db: db}
}

func (r *collaboratorRepository) Upsert(ctx context.Context, collaborator *domain.Collaborator) error {
	now := time.Now().UTC()
	m := collaboratorModel{
		ID:         collaborator.ID,
		NoteID:     collaborator.NoteID,
		UserID:     collaborator.UserID,
		Permission: string(collaborator.Permission),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "note_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"permission", "updated_at"}),
		}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to save collaborator: %w", err)
	}

	stored, err := r.Find(ctx, collaborator.NoteID, collaborator.UserID)
	if err != nil {
		return err
	}

	*collaborator = *stored
	return nil
}

func (r *collaboratorRepository) Find(ctx context.Context, noteID, userID string) (*domain.Collaborator, error) {
	var m collaboratorModel
	err := r.db.WithContext(ctx).Take(&m, "note_id = ? AND user_id = ?", noteID, userID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find collaborator: %w", translate(err))
	}
	return m.toDomain(), nil
}

func (r *collaboratorRepository) ListByNote(ctx context.Context, noteID string) ([]*domain.Collaborator, error) {
	var models []collaboratorModel
	if err := r.db.WithContext(ctx).Where("note_id = ?", noteID).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}

	collaborators := make([]*domain.Collaborator, 0, len(models))
	for i := range models {
		collaborators = append(collaborators, models[i].toDomain())
	}
	return collaborators, nil
}

func (r *collaboratorRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Collaborator, error) {
	var models []collaboratorModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list collaborations: %w", err)
	}

	collaborators := make([]*domain.Collaborator, 0, len(models))
	for i := range models {
		collaborators = append(collaborators, models[i].toDomain())
	}
	return collaborators, nil
}
