package collabclient

import "encoding/json"

// Server message types, plus the client-side lifecycle events.
const (
	TypeJoined   = "joined"
	TypeEdit     = "edit"
	TypeEditAck  = "edit_ack"
	TypeResync   = "resync"
	TypePresence = "presence"
	TypeError    = "error"
	TypePong     = "pong"

	// TypeReconnected is emitted after a dropped session was re-established.
	TypeReconnected = "reconnected"
	// TypeClosed is the last event of a stream. Event.Err holds the cause.
	TypeClosed = "closed"
)

type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Version int64  `json:"version"`
}

type User struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Event is one decoded server message or lifecycle notification.
type Event struct {
	Type    string `json:"type"`
	Note    *Note  `json:"note,omitempty"`
	NoteID  string `json:"noteId,omitempty"`
	Content string `json:"content,omitempty"`
	Version int64  `json:"version,omitempty"`
	Users   []User `json:"users,omitempty"`
	Message string `json:"message,omitempty"`

	Err error           `json:"-"`
	Raw json.RawMessage `json:"-"`
}

type outbound struct {
	Type    string  `json:"type"`
	NoteID  string  `json:"noteId,omitempty"`
	Content *string `json:"content,omitempty"`
	Version *int64  `json:"version,omitempty"`
}

func decodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	ev.Raw = append(json.RawMessage(nil), data...)
	return ev, nil
}
