package service

import (
	"errors"

	"notesync-server/internal/domain"
)

var (
	ErrNoteNotFound       = errors.New("note not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidGrant       = errors.New("owner cannot be granted a permission on their own note")
	ErrFolderNotFound     = errors.New("folder not found")
)

// StaleVersionError reports that an edit was based on an older version than
// the one stored. Current is the authoritative state to resync from.
type StaleVersionError struct {
	Current *domain.Note
}

func (e *StaleVersionError) Error() string {
	return "stale note version"
}
