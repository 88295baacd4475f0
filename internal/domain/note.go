package domain

import "time"

type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	FolderID  *string   `json:"folder_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	ShareCode *string   `json:"share_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is the authoritative note state exchanged over the realtime channel.
type Snapshot struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Version int64  `json:"version"`
}

func (n *Note) Snapshot() Snapshot {
	return Snapshot{
		ID:      n.ID,
		Title:   n.Title,
		Content: n.Content,
		Version: n.Version,
	}
}

type CreateNoteRequest struct {
	Title    string  `json:"title" validate:"required,max=200"`
	Content  string  `json:"content"`
	FolderID *string `json:"folder_id"`
}

// UpdateNoteRequest changes only the fields that are set. An empty FolderID
// moves the note out of its folder. Version, when set, is the version the
// caller last saw.
type UpdateNoteRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content  *string `json:"content"`
	FolderID *string `json:"folder_id"`
	Version  *int64  `json:"version" validate:"omitempty,min=1"`
}

// SharedNote is a note as listed for one of its collaborators.
type SharedNote struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Version    int64      `json:"version"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Permission Permission `json:"permission"`
	OwnerName  string     `json:"owner_name"`
}

type ShareLink struct {
	NoteID    string `json:"note_id"`
	ShareCode string `json:"share_code"`
}
