package websocket

import (
	"testing"

	"notesync-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"edit","noteId":"n1","content":"","version":3}`))
	require.NoError(t, err)

	edit := msg.EditRequest()
	assert.Equal(t, TypeEdit, msg.Type)
	assert.Equal(t, "n1", edit.NoteID)
	require.NotNil(t, edit.Content)
	assert.Equal(t, "", *edit.Content)
	require.NotNil(t, edit.Version)
	assert.Equal(t, int64(3), *edit.Version)

	msg, err = DecodeInbound([]byte(`{"type":"edit","noteId":"n1"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.Content)
	assert.Nil(t, msg.Version)

	_, err = DecodeInbound([]byte(`{"type":"edit","version":1.5}`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`not json`))
	assert.Error(t, err)
}

func TestOutboundShapes(t *testing.T) {
	snap := domain.Snapshot{ID: "n1", Title: "T", Content: "A", Version: 3}

	tests := []struct {
		name string
		msg  interface{}
		want string
	}{
		{"joined", NewJoined(snap), `{"type":"joined","note":{"id":"n1","title":"T","content":"A","version":3}}`},
		{"resync", NewResync(snap), `{"type":"resync","note":{"id":"n1","title":"T","content":"A","version":3}}`},
		{"edit", NewEdit("n1", "", 4), `{"type":"edit","noteId":"n1","content":"","version":4}`},
		{"edit_ack", NewEditAck("n1", 4), `{"type":"edit_ack","noteId":"n1","version":4}`},
		{"empty presence", NewPresence(nil), `{"type":"presence","users":[]}`},
		{"presence", NewPresence([]PresenceUser{{UserID: "u1", Name: "Ada"}}), `{"type":"presence","users":[{"userId":"u1","name":"Ada"}]}`},
		{"error", NewError("Access denied"), `{"type":"error","message":"Access denied"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}
