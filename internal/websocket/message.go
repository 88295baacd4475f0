package websocket

import (
	"encoding/json"

	"notesync-server/internal/domain"
)

type MessageType string

// Client to server.
const (
	TypeJoin  MessageType = "join"
	TypeEdit  MessageType = "edit"
	TypeLeave MessageType = "leave"
	TypePing  MessageType = "ping"
)

// Server to client. TypeEdit is also used for fan-out to other occupants.
const (
	TypeJoined   MessageType = "joined"
	TypeEditAck  MessageType = "edit_ack"
	TypeResync   MessageType = "resync"
	TypePresence MessageType = "presence"
	TypeError    MessageType = "error"
	TypePong     MessageType = "pong"
)

// Inbound is any message a client may send. Pointer fields distinguish a
// missing value from its zero value.
type Inbound struct {
	Type    MessageType `json:"type"`
	NoteID  string      `json:"noteId"`
	Content *string     `json:"content"`
	Version *int64      `json:"version"`
}

// JoinRequest, EditRequest and LeaveRequest are the validated views of Inbound.
type JoinRequest struct {
	NoteID string `validate:"required"`
}

type EditRequest struct {
	NoteID  string  `validate:"required"`
	Content *string `validate:"required"`
	Version *int64  `validate:"required"`
}

type LeaveRequest struct {
	NoteID string
}

func (m *Inbound) JoinRequest() JoinRequest {
	return JoinRequest{NoteID: m.NoteID}
}

func (m *Inbound) EditRequest() EditRequest {
	return EditRequest{NoteID: m.NoteID, Content: m.Content, Version: m.Version}
}

func (m *Inbound) LeaveRequest() LeaveRequest {
	return LeaveRequest{NoteID: m.NoteID}
}

type NoteMessage struct {
	Type MessageType     `json:"type"`
	Note domain.Snapshot `json:"note"`
}

type EditMessage struct {
	Type    MessageType `json:"type"`
	NoteID  string      `json:"noteId"`
	Content string      `json:"content"`
	Version int64       `json:"version"`
}

type EditAckMessage struct {
	Type    MessageType `json:"type"`
	NoteID  string      `json:"noteId"`
	Version int64       `json:"version"`
}

type PresenceUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type PresenceMessage struct {
	Type  MessageType    `json:"type"`
	Users []PresenceUser `json:"users"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type PongMessage struct {
	Type MessageType `json:"type"`
}

func NewJoined(note domain.Snapshot) *NoteMessage {
	return &NoteMessage{Type: TypeJoined, Note: note}
}

func NewResync(note domain.Snapshot) *NoteMessage {
	return &NoteMessage{Type: TypeResync, Note: note}
}

func NewEdit(noteID, content string, version int64) *EditMessage {
	return &EditMessage{Type: TypeEdit, NoteID: noteID, Content: content, Version: version}
}

func NewEditAck(noteID string, version int64) *EditAckMessage {
	return &EditAckMessage{Type: TypeEditAck, NoteID: noteID, Version: version}
}

func NewPresence(users []PresenceUser) *PresenceMessage {
	if users == nil {
		users = []PresenceUser{}
	}
	return &PresenceMessage{Type: TypePresence, Users: users}
}

func NewError(message string) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Message: message}
}

func NewPong() *PongMessage {
	return &PongMessage{Type: TypePong}
}

func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeInbound parses one client frame.
func DecodeInbound(data []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
