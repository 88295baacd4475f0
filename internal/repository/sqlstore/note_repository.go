package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notesync-server/internal/domain"
	"notesync-server/internal/repository"

	"gorm.io/gorm"
)

type noteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) repository.NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	if err := r.db.WithContext(ctx).Create(noteFromDomain(note)).Error; err != nil {
		if errors.Is(translate(err), repository.ErrAlreadyExists) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	return findNote(r.db.WithContext(ctx), id)
}

func findNote(tx *gorm.DB, id string) (*domain.Note, error) {
	var m noteModel
	if err := tx.Take(&m, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to find note: %w", translate(err))
	}
	return m.toDomain(), nil
}

func (r *noteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	return r.list(ctx, r.db.Where("owner_id = ?", ownerID))
}

// UpdateContent issues UPDATE ... WHERE id = ? AND version = ?; zero affected
// rows means either the note is gone or another writer got there first.
func (r *noteRepository) UpdateContent(ctx context.Context, id, content string, expectedVersion int64) (*domain.Note, error) {
	return r.updateIfVersion(ctx, id, expectedVersion, map[string]interface{}{
		"content": content,
	})
}

func (r *noteRepository) Update(ctx context.Context, note *domain.Note, expectedVersion int64) (*domain.Note, error) {
	return r.updateIfVersion(ctx, note.ID, expectedVersion, map[string]interface{}{
		"title":     note.Title,
		"content":   note.Content,
		"folder_id": note.FolderID,
	})
}

func (r *noteRepository) updateIfVersion(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) (*domain.Note, error) {
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = time.Now().UTC()

	var updated *domain.Note
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&noteModel{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			if _, err := findNote(tx, id); err != nil {
				return err
			}
			return repository.ErrVersionConflict
		}

		note, err := findNote(tx, id)
		if err != nil {
			return err
		}
		updated = note
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	return updated, nil
}

func (r *noteRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&collaboratorModel{}, "note_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete collaborators: %w", err)
		}
		if err := tx.Delete(&noteVersionModel{}, "note_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete note history: %w", err)
		}

		res := tx.Delete(&noteModel{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete note: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *noteRepository) ListByFolder(ctx context.Context, ownerID, folderID string) ([]*domain.Note, error) {
	return r.list(ctx, r.db.Where("owner_id = ? AND folder_id = ?", ownerID, folderID))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *noteRepository) Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	return r.list(ctx, r.db.
		Where("owner_id = ?", ownerID).
		Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')`, pattern, pattern))
}

func (r *noteRepository) list(ctx context.Context, scope *gorm.DB) ([]*domain.Note, error) {
	var models []noteModel
	if err := scope.WithContext(ctx).Order("updated_at desc").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := make([]*domain.Note, 0, len(models))
	for i := range models {
		notes = append(notes, models[i].toDomain())
	}
	return notes, nil
}

func (r *noteRepository) FindByShareCode(ctx context.Context, code string) (*domain.Note, error) {
	var m noteModel
	if err := r.db.WithContext(ctx).Take(&m, "share_code = ?", code).Error; err != nil {
		return nil, fmt.Errorf("failed to find shared note: %w", translate(err))
	}
	return m.toDomain(), nil
}

func (r *noteRepository) SetShareCode(ctx context.Context, id, code string) error {
	res := r.db.WithContext(ctx).Model(&noteModel{}).Where("id = ?", id).Update("share_code", code)
	if res.Error != nil {
		if errors.Is(translate(res.Error), repository.ErrAlreadyExists) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to set share code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *noteRepository) ClearFolder(ctx context.Context, ownerID, folderID string) error {
	err := r.db.WithContext(ctx).Model(&noteModel{}).
		Where("owner_id = ? AND folder_id = ?", ownerID, folderID).
		Update("folder_id", nil).Error
	if err != nil {
		return fmt.Errorf("failed to clear folder: %w", err)
	}
	return nil
}
