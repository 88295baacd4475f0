package domain

import "time"

type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

func (p Permission) CanEdit() bool {
	return p == PermissionEdit
}

type Collaborator struct {
	ID         string     `json:"id"`
	NoteID     string     `json:"note_id"`
	UserID     string     `json:"user_id"`
	Permission Permission `json:"permission"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type GrantRequest struct {
	UserID     string     `json:"user_id" validate:"required"`
	Permission Permission `json:"permission" validate:"required,oneof=view edit"`
}

// Access is the caller's relationship to a note.
type Access struct {
	Note       *Note
	IsOwner    bool
	Permission Permission
}

func (a *Access) CanView() bool {
	return a.IsOwner || a.Permission == PermissionView || a.Permission == PermissionEdit
}

func (a *Access) CanEdit() bool {
	return a.IsOwner || a.Permission.CanEdit()
}
