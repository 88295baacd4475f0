package sqlstore

import (
	"time"

	"notesync-server/internal/domain"
)

type noteModel struct {
	ID        string  `gorm:"primaryKey;size:36"`
	OwnerID   string  `gorm:"size:36;not null;index"`
	FolderID  *string `gorm:"size:36;index"`
	Title     string  `gorm:"not null"`
	Content   string  `gorm:"type:text;not null"`
	Version   int64   `gorm:"not null;default:1"`
	ShareCode *string `gorm:"size:64;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (noteModel) TableName() string { return "notes" }

func (m *noteModel) toDomain() *domain.Note {
	return &domain.Note{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		FolderID:  m.FolderID,
		Title:     m.Title,
		Content:   m.Content,
		Version:   m.Version,
		ShareCode: m.ShareCode,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func noteFromDomain(n *domain.Note) *noteModel {
	return &noteModel{
		ID:        n.ID,
		OwnerID:   n.OwnerID,
		FolderID:  n.FolderID,
		Title:     n.Title,
		Content:   n.Content,
		Version:   n.Version,
		ShareCode: n.ShareCode,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

type collaboratorModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	NoteID     string `gorm:"size:36;not null;uniqueIndex:idx_collaborator_note_user"`
	UserID     string `gorm:"size:36;not null;uniqueIndex:idx_collaborator_note_user;index"`
	Permission string `gorm:"size:16;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (collaboratorModel) TableName() string { return "collaborators" }

func (m *collaboratorModel) toDomain() *domain.Collaborator {
	return &domain.Collaborator{
		ID:         m.ID,
		NoteID:     m.NoteID,
		UserID:     m.UserID,
		Permission: domain.Permission(m.Permission),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type noteVersionModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	NoteID    string `gorm:"size:36;not null;index:idx_note_version,priority:1"`
	Title     string
	Content   string `gorm:"type:text"`
	Version   int64  `gorm:"not null;index:idx_note_version,priority:2"`
	CreatedAt time.Time
}

func (noteVersionModel) TableName() string { return "note_versions" }

func (m *noteVersionModel) toDomain() *domain.NoteVersion {
	return &domain.NoteVersion{
		ID:        m.ID,
		NoteID:    m.NoteID,
		Title:     m.Title,
		Content:   m.Content,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
	}
}

type userModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"not null"`
	Email     string `gorm:"size:255;not null;uniqueIndex"`
	Password  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toDomain() *domain.User {
	return &domain.User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Password:  m.Password,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type folderModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OwnerID   string `gorm:"size:36;not null;index"`
	Name      string `gorm:"size:100;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (folderModel) TableName() string { return "folders" }

func (m *folderModel) toDomain() *domain.Folder {
	return &domain.Folder{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
