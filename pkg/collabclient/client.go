// Package collabclient is a Go client for the realtime note editing protocol.
package collabclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = time.Second
	writeWait          = 10 * time.Second
	eventBuffer        = 64
)

var (
	ErrClosed             = errors.New("collabclient: client closed")
	ErrReconnectExhausted = errors.New("collabclient: reconnect attempts exhausted")
)

type Option func(*Client)

// WithReconnect sets the retry budget after an abnormal closure. Attempt n
// waits n*delay before dialing.
func WithReconnect(maxAttempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.retryDelay = delay
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

type Client struct {
	url         string
	dialer      *websocket.Dialer
	maxAttempts int
	retryDelay  time.Duration
	log         *zap.Logger

	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	noteID string
	closed bool

	writeMu sync.Mutex
}

// Dial opens a session authenticated with token. The token travels in the
// query string since browsers cannot set headers on upgrade requests.
func Dial(ctx context.Context, rawURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("collabclient: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	c := &Client{
		url:         u.String(),
		dialer:      websocket.DefaultDialer,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	go c.run(conn)
	return c, nil
}

// Events delivers server messages in arrival order. The channel is closed
// after a TypeClosed event, or after Close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Join enters noteID's room. The note is rejoined after a reconnect.
func (c *Client) Join(noteID string) error {
	c.mu.Lock()
	c.noteID = noteID
	c.mu.Unlock()

	return c.write(outbound{Type: "join", NoteID: noteID})
}

func (c *Client) Edit(noteID, content string, baseVersion int64) error {
	return c.write(outbound{Type: "edit", NoteID: noteID, Content: &content, Version: &baseVersion})
}

func (c *Client) Leave(noteID string) error {
	c.mu.Lock()
	if c.noteID == noteID {
		c.noteID = ""
	}
	c.mu.Unlock()

	return c.write(outbound{Type: "leave", NoteID: noteID})
}

func (c *Client) Ping() error {
	return c.write(outbound{Type: "ping"})
}

// Close sends a normal closure and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	close(c.done)
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	c.writeMu.Unlock()

	return conn.Close()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("collabclient: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("collabclient: dial failed: %w", err)
	}
	return conn, nil
}

func (c *Client) write(msg outbound) error {
	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()

	if closed || conn == nil {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (c *Client) run(conn *websocket.Conn) {
	defer close(c.events)

	for {
		err := c.readLoop(conn)
		conn.Close()

		if c.isClosed() {
			return
		}

		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
			c.emit(Event{Type: TypeClosed, Err: err})
			return
		}

		c.log.Warn("connection lost, reconnecting", zap.Error(err))

		next, rerr := c.reconnect()
		if rerr != nil {
			if !errors.Is(rerr, ErrClosed) {
				c.emit(Event{Type: TypeClosed, Err: rerr})
			}
			return
		}
		conn = next
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := decodeEvent(data)
		if err != nil {
			c.log.Warn("discarding undecodable message", zap.Error(err))
			continue
		}
		c.emit(ev)
	}
}

func (c *Client) reconnect() (*websocket.Conn, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		case <-c.done:
			return nil, ErrClosed
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			lastErr = err
			c.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return nil, ErrClosed
		}
		c.conn = conn
		noteID := c.noteID
		c.mu.Unlock()

		c.emit(Event{Type: TypeReconnected})

		if noteID != "" {
			if err := c.write(outbound{Type: "join", NoteID: noteID}); err != nil {
				lastErr = err
				conn.Close()
				continue
			}
		}
		return conn, nil
	}

	if lastErr == nil {
		return nil, ErrReconnectExhausted
	}
	return nil, fmt.Errorf("%w: %v", ErrReconnectExhausted, lastErr)
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
