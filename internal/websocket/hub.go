package websocket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"notesync-server/pkg/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrTooManyConnections = errors.New("too many connections for user")
	ErrHubClosed          = errors.New("hub is closed")
)

// Hub tracks connected clients and the room registry: which clients have
// joined which note. A client is in at most one room.
type Hub struct {
	mu             sync.Mutex
	clients        map[string]*Client
	userIndex      map[string]map[string]*Client
	rooms          map[string]map[*Client]struct{}
	maxConnPerUser int
	log            *zap.Logger

	closing bool
	drained chan struct{}
}

func NewHub(maxConnPerUser int, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]*Client),
		rooms:          make(map[string]map[*Client]struct{}),
		maxConnPerUser: maxConnPerUser,
		log:            log,
		drained:        make(chan struct{}),
	}
}

func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return ErrHubClosed
	}

	if h.maxConnPerUser > 0 && len(h.userIndex[client.UserID]) >= h.maxConnPerUser {
		h.log.Warn("max connections reached", zap.String("user_id", client.UserID))
		return ErrTooManyConnections
	}

	if h.userIndex[client.UserID] == nil {
		h.userIndex[client.UserID] = make(map[string]*Client)
	}
	h.clients[client.ID] = client
	h.userIndex[client.UserID][client.ID] = client
	metrics.Connections.Inc()

	h.log.Info("client registered", zap.String("client_id", client.ID), zap.String("user_id", client.UserID))
	return nil
}

// Unregister evicts the client from its room, closes its send queue and
// returns the note it was in, if any.
func (h *Hub) Unregister(client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	noteID := h.evictLocked(client)

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		delete(h.userIndex[client.UserID], client.ID)
		if len(h.userIndex[client.UserID]) == 0 {
			delete(h.userIndex, client.UserID)
		}
		metrics.Connections.Dec()
		h.log.Info("client unregistered", zap.String("client_id", client.ID))

		if h.closing && len(h.clients) == 0 {
			close(h.drained)
		}
	}

	client.shutdown()
	return noteID
}

// Close refuses new registrations and shuts every client's send queue, so
// each write pump sends a close frame. It returns once every session has
// unregistered, or with ctx's error if that takes too long.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closing {
		h.closing = true
		for _, c := range h.clients {
			c.shutdownWith(websocket.CloseGoingAway)
		}
		if len(h.clients) == 0 {
			close(h.drained)
		}
		h.log.Info("hub closing", zap.Int("clients", len(h.clients)))
	}
	h.mu.Unlock()

	select {
	case <-h.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions to close: %w", ctx.Err())
	}
}

// Admit moves client into the room for noteID, creating it if needed, and
// returns the note it previously occupied ("" if none or the same note).
func (h *Hub) Admit(noteID string, client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	previous := client.noteID
	if previous == noteID {
		return ""
	}
	h.evictLocked(client)

	room, ok := h.rooms[noteID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[noteID] = room
		metrics.ActiveRooms.Inc()
	}
	room[client] = struct{}{}
	client.noteID = noteID

	return previous
}

// Evict removes client from its room and returns the note it left.
func (h *Hub) Evict(client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evictLocked(client)
}

func (h *Hub) evictLocked(client *Client) string {
	noteID := client.noteID
	if noteID == "" {
		return ""
	}
	client.noteID = ""

	if room, ok := h.rooms[noteID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, noteID)
			metrics.ActiveRooms.Dec()
		}
	}
	return noteID
}

// CurrentNote returns the note client has joined, or "".
func (h *Hub) CurrentNote(client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return client.noteID
}

// Occupants returns the clients in the room for noteID, ordered by client ID.
func (h *Hub) Occupants(noteID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.occupantsLocked(noteID)
}

func (h *Hub) occupantsLocked(noteID string) []*Client {
	room := h.rooms[noteID]
	if len(room) == 0 {
		return nil
	}

	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients
}

// Announce sends the occupant list of noteID to every occupant. It holds the
// registry lock while queueing so presence updates reach every client in the
// order the registry changed. Failed sends are dropped.
func (h *Hub) Announce(noteID string) {
	if noteID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	occupants := h.occupantsLocked(noteID)
	if len(occupants) == 0 {
		return
	}

	users := make([]PresenceUser, 0, len(occupants))
	for _, c := range occupants {
		if c.Closed() {
			continue
		}
		users = append(users, PresenceUser{UserID: c.UserID, Name: c.Name})
	}

	data, err := Encode(NewPresence(users))
	if err != nil {
		h.log.Error("failed to encode presence", zap.Error(err))
		return
	}

	for _, c := range occupants {
		c.Enqueue(data)
	}
}

// Broadcast queues v for every occupant of noteID except exclude and
// returns how many clients accepted it.
func (h *Hub) Broadcast(noteID string, v interface{}, exclude *Client) int {
	data, err := Encode(v)
	if err != nil {
		h.log.Error("failed to encode broadcast", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, c := range h.Occupants(noteID) {
		if c == exclude {
			continue
		}
		if c.Enqueue(data) {
			delivered++
		}
	}
	return delivered
}

// CloseRoom queues v for every occupant of noteID, then empties the room.
// The clients stay connected and may join another note.
func (h *Hub) CloseRoom(noteID string, v interface{}) int {
	data, err := Encode(v)
	if err != nil {
		h.log.Error("failed to encode room close", zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	occupants := h.occupantsLocked(noteID)
	for _, c := range occupants {
		c.Enqueue(data)
		h.evictLocked(c)
	}
	return len(occupants)
}

func (h *Hub) UserConnections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.userIndex[userID])
}

func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
