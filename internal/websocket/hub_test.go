package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"notesync-server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id, userID, name string, queue int) *Client {
	return NewClient(id, userID, name, nil, config.WebSocketConfig{SendQueueSize: queue}, nil)
}

func drain(t *testing.T, c *Client) []map[string]interface{} {
	t.Helper()

	var out []map[string]interface{}
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func presenceUserIDs(msg map[string]interface{}) []string {
	users, _ := msg["users"].([]interface{})
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.(map[string]interface{})["userId"].(string))
	}
	return ids
}

func TestHub_RegisterLimitsConnectionsPerUser(t *testing.T) {
	hub := NewHub(2, nil)

	require.NoError(t, hub.Register(newTestClient("c1", "u1", "Ada", 4)))
	require.NoError(t, hub.Register(newTestClient("c2", "u1", "Ada", 4)))
	assert.ErrorIs(t, hub.Register(newTestClient("c3", "u1", "Ada", 4)), ErrTooManyConnections)
	require.NoError(t, hub.Register(newTestClient("c4", "u2", "Bob", 4)))

	assert.Equal(t, 2, hub.UserConnections("u1"))
	assert.Equal(t, 1, hub.UserConnections("u2"))
}

func TestHub_AdmitMovesBetweenRooms(t *testing.T) {
	hub := NewHub(0, nil)
	c := newTestClient("c1", "u1", "Ada", 4)

	assert.Equal(t, "", hub.Admit("note-a", c))
	assert.Equal(t, "note-a", hub.CurrentNote(c))
	assert.Len(t, hub.Occupants("note-a"), 1)

	assert.Equal(t, "note-a", hub.Admit("note-b", c))
	assert.Empty(t, hub.Occupants("note-a"))
	assert.Len(t, hub.Occupants("note-b"), 1)
	assert.Equal(t, 1, hub.RoomCount())

	assert.Equal(t, "", hub.Admit("note-b", c))
	assert.Len(t, hub.Occupants("note-b"), 1)
}

func TestHub_EvictDeletesEmptyRoom(t *testing.T) {
	hub := NewHub(0, nil)
	a := newTestClient("a", "u1", "Ada", 4)
	b := newTestClient("b", "u2", "Bob", 4)

	hub.Admit("note", a)
	hub.Admit("note", b)

	assert.Equal(t, "note", hub.Evict(a))
	assert.Equal(t, 1, hub.RoomCount())
	assert.Equal(t, "", hub.Evict(a))

	assert.Equal(t, "note", hub.Evict(b))
	assert.Equal(t, 0, hub.RoomCount())
}

func TestHub_UnregisterLeavesRoomAndClosesQueue(t *testing.T) {
	hub := NewHub(0, nil)
	c := newTestClient("c1", "u1", "Ada", 4)
	require.NoError(t, hub.Register(c))
	hub.Admit("note", c)

	assert.Equal(t, "note", hub.Unregister(c))
	assert.True(t, c.Closed())
	assert.Equal(t, 0, hub.RoomCount())
	assert.Equal(t, 0, hub.UserConnections("u1"))
	assert.False(t, c.Enqueue([]byte("late")))

	// second unregister is harmless
	assert.Equal(t, "", hub.Unregister(c))
}

func TestHub_AnnounceReachesEveryOccupant(t *testing.T) {
	hub := NewHub(0, nil)
	a := newTestClient("a", "u1", "Ada", 4)
	b := newTestClient("b", "u2", "Bob", 4)
	other := newTestClient("c", "u3", "Cy", 4)

	hub.Admit("note", a)
	hub.Admit("note", b)
	hub.Admit("elsewhere", other)
	hub.Announce("note")

	for _, c := range []*Client{a, b} {
		msgs := drain(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "presence", msgs[0]["type"])
		assert.ElementsMatch(t, []string{"u1", "u2"}, presenceUserIDs(msgs[0]))
	}
	assert.Empty(t, drain(t, other))

	hub.Announce("empty")
	hub.Announce("")
}

func TestHub_SwitchingRoomsUpdatesBothPresenceLists(t *testing.T) {
	hub := NewHub(0, nil)
	mover := newTestClient("m", "u1", "Ada", 8)
	stayA := newTestClient("a", "u2", "Bob", 8)
	stayB := newTestClient("b", "u3", "Cy", 8)

	hub.Admit("note-a", mover)
	hub.Admit("note-a", stayA)
	hub.Admit("note-b", stayB)

	previous := hub.Admit("note-b", mover)
	hub.Announce(previous)
	hub.Announce("note-b")

	msgsA := drain(t, stayA)
	require.Len(t, msgsA, 1)
	assert.Equal(t, []string{"u2"}, presenceUserIDs(msgsA[0]))

	msgsB := drain(t, stayB)
	require.Len(t, msgsB, 1)
	assert.ElementsMatch(t, []string{"u1", "u3"}, presenceUserIDs(msgsB[0]))
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := NewHub(0, nil)
	sender := newTestClient("s", "u1", "Ada", 4)
	peer := newTestClient("p", "u2", "Bob", 4)
	hub.Admit("note", sender)
	hub.Admit("note", peer)

	n := hub.Broadcast("note", NewEdit("note", "hello", 4), sender)
	assert.Equal(t, 1, n)

	assert.Empty(t, drain(t, sender))
	msgs := drain(t, peer)
	require.Len(t, msgs, 1)
	assert.Equal(t, "edit", msgs[0]["type"])
	assert.Equal(t, "hello", msgs[0]["content"])
	assert.EqualValues(t, 4, msgs[0]["version"])
}

func TestHub_FullPeerDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(0, nil)
	sender := newTestClient("a", "u1", "Ada", 4)
	slow := newTestClient("b", "u2", "Bob", 1)
	fast := newTestClient("c", "u3", "Cy", 4)
	closed := newTestClient("d", "u4", "Di", 4)
	closed.shutdown()

	for _, c := range []*Client{sender, slow, fast, closed} {
		hub.Admit("note", c)
	}

	require.True(t, slow.Enqueue([]byte(`{"type":"pong"}`)))

	n := hub.Broadcast("note", NewEdit("note", "x", 2), sender)
	assert.Equal(t, 1, n)

	msgs := drain(t, fast)
	require.Len(t, msgs, 1)
	assert.Equal(t, "edit", msgs[0]["type"])
}

func TestHub_AnnounceSkipsClosedClients(t *testing.T) {
	hub := NewHub(0, nil)
	open := newTestClient("a", "u1", "Ada", 4)
	gone := newTestClient("b", "u2", "Bob", 4)
	hub.Admit("note", open)
	hub.Admit("note", gone)
	gone.shutdown()

	hub.Announce("note")

	msgs := drain(t, open)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"u1"}, presenceUserIDs(msgs[0]))
}

func TestHub_AnnounceSkipsDroppedClients(t *testing.T) {
	hub := NewHub(0, nil)
	open := newTestClient("a", "u1", "Ada", 4)
	slow := newTestClient("b", "u2", "Bob", 1)
	hub.Admit("note", open)
	hub.Admit("note", slow)

	require.True(t, slow.Enqueue([]byte(`{"type":"pong"}`)))
	assert.False(t, slow.Enqueue([]byte(`{"type":"pong"}`)))
	assert.True(t, slow.Closed())

	drain(t, slow)
	assert.False(t, slow.Enqueue([]byte(`{"type":"pong"}`)), "dropped client accepted a message after its queue drained")

	hub.Announce("note")

	msgs := drain(t, open)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"u1"}, presenceUserIDs(msgs[0]))
}

func TestHub_CloseWaitsForSessions(t *testing.T) {
	hub := NewHub(0, nil)
	a := newTestClient("a", "u1", "Ada", 4)
	b := newTestClient("b", "u2", "Bob", 4)
	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(b))
	hub.Admit("note", a)

	done := make(chan error, 1)
	go func() { done <- hub.Close(context.Background()) }()

	require.Eventually(t, func() bool { return a.Closed() && b.Closed() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, hub.Register(newTestClient("c", "u3", "Cy", 4)), ErrHubClosed)

	select {
	case <-done:
		t.Fatal("Close returned while sessions were still registered")
	case <-time.After(20 * time.Millisecond):
	}

	hub.Unregister(a)
	hub.Unregister(b)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the last session left")
	}
	assert.Equal(t, 0, hub.RoomCount())
}

func TestHub_CloseTimesOut(t *testing.T) {
	hub := NewHub(0, nil)
	require.NoError(t, hub.Register(newTestClient("a", "u1", "Ada", 4)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, hub.Close(ctx), context.DeadlineExceeded)
}

func TestHub_CloseEmpty(t *testing.T) {
	hub := NewHub(0, nil)

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestHub_CloseRoomNotifiesAndEmptiesRoom(t *testing.T) {
	hub := NewHub(0, nil)
	a := newTestClient("a", "u1", "Ada", 4)
	b := newTestClient("b", "u2", "Bob", 4)
	other := newTestClient("c", "u3", "Cy", 4)
	hub.Admit("n1", a)
	hub.Admit("n1", b)
	hub.Admit("n2", other)

	assert.Equal(t, 2, hub.CloseRoom("n1", NewError("Note has been deleted")))
	assert.Equal(t, 1, hub.RoomCount())
	assert.Empty(t, hub.CurrentNote(a))
	assert.Empty(t, hub.CurrentNote(b))
	assert.Equal(t, "n2", hub.CurrentNote(other))

	for _, c := range []*Client{a, b} {
		msgs := drain(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "error", msgs[0]["type"])
		assert.False(t, c.Closed())
	}
	assert.Empty(t, drain(t, other))

	assert.Zero(t, hub.CloseRoom("n1", NewError("gone")))
}
