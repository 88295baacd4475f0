package websocket

import (
	"context"
	"sync"
	"time"

	"notesync-server/internal/config"
	"notesync-server/pkg/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MessageHandler processes frames read from a client. HandleDisconnect runs
// once, after the read loop ends.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, data []byte)
	HandleDisconnect(ctx context.Context, client *Client)
}

// Client is one authenticated connection. The joined note is owned by the Hub.
type Client struct {
	ID     string
	UserID string
	Name   string

	conn    *websocket.Conn
	cfg     config.WebSocketConfig
	send    chan []byte
	limiter *rate.Limiter
	log     *zap.Logger

	mu        sync.Mutex
	closed    bool
	dropped   bool
	closeCode int

	// guarded by Hub.mu
	noteID string
}

func NewClient(id, userID, name string, conn *websocket.Conn, cfg config.WebSocketConfig, log *zap.Logger) *Client {
	queue := cfg.SendQueueSize
	if queue <= 0 {
		queue = 256
	}

	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}

	burst := cfg.MessageBurst
	if burst <= 0 {
		burst = 1
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		ID:      id,
		UserID:  userID,
		Name:    name,
		conn:    conn,
		cfg:     cfg,
		send:    make(chan []byte, queue),
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With(zap.String("client_id", id), zap.String("user_id", userID)),
	}
}

// Allow reports whether the client is within its inbound message budget.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// Enqueue queues data for the write pump without blocking. A full queue drops
// the message and closes the connection; the read loop then runs the normal
// disconnect path.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.dropped {
		metrics.BroadcastDropped.Inc()
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		c.dropped = true
		metrics.BroadcastDropped.Inc()
		c.log.Warn("send queue full, closing connection")
		if c.conn != nil {
			c.conn.Close()
		}
		return false
	}
}

// Send encodes v and enqueues it.
func (c *Client) Send(v interface{}) bool {
	data, err := Encode(v)
	if err != nil {
		c.log.Error("failed to encode message", zap.Error(err))
		return false
	}
	return c.Enqueue(data)
}

// Outbound returns the send queue. WritePump drains it for real
// connections; in-process consumers may read it directly.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Closed reports whether the client no longer accepts messages: its queue
// was shut, or it was dropped for falling behind.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed || c.dropped
}

// shutdown closes the send queue so the write pump sends a normal close
// frame and exits.
func (c *Client) shutdown() {
	c.shutdownWith(websocket.CloseNormalClosure)
}

// shutdownWith is shutdown with an explicit close code. Only the first call
// picks the code.
func (c *Client) shutdownWith(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.closeCode = code
		close(c.send)
	}
}

func (c *Client) closeFrame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.FormatCloseMessage(c.closeCode, "")
}

// CloseWithCode sends a close frame with code and reason, then closes the
// connection. Used to refuse a connection after the upgrade.
func CloseWithCode(conn *websocket.Conn, code int, reason string, writeWait time.Duration) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	conn.Close()
}

func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	defer func() {
		handler.HandleDisconnect(ctx, c)
		c.conn.Close()
	}()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		handler.HandleMessage(ctx, c, message)
	}
}

// WritePump writes queued messages, one frame each, and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, c.closeFrame())
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
