// Package push maintains the persistent WebSocket subscription the server
// uses to signal chat activity. Events carry no authoritative data; they are
// refresh triggers for the REST fetch endpoints.
package push

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillswap/chatsync/internal/logger"
)

var log = logger.New("push")

// EventReceiveMessage signals that a message arrived somewhere in one of the
// user's conversations.
const EventReceiveMessage = "receive_message"

// Event is an inbound push notification. ConversationID is optional; the
// server may send a bare type with no payload.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
}

// joinFrame associates the connection with the user's conversations
// server-side. Sent once per established connection.
type joinFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ChannelError reports a failure to establish the push connection.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string { return fmt.Sprintf("push channel: %v", e.Err) }

func (e *ChannelError) Unwrap() error { return e.Err }

// Options tunes connection behavior. Zero values select defaults.
type Options struct {
	// DialTimeout bounds the WebSocket handshake.
	DialTimeout time.Duration
	// InitialBackoff is the first reconnect delay; it doubles per failed
	// attempt up to MaxBackoff, with jitter.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxRetries caps reconnect attempts after a dropped connection.
	// Zero means retry indefinitely.
	MaxRetries int
	// ReadTimeout is the pong deadline; the server is expected to ping
	// well inside it.
	ReadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.DialTimeout == 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.InitialBackoff == 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 60 * time.Second
	}
	return o
}

// Client is one push subscription for one user identity. It is not reused
// across identities; build a fresh Client per login.
type Client struct {
	socketURL string
	userID    string
	opts      Options

	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	conn      *websocket.Conn
}

// NewClient prepares a subscription for userID against socketURL
// (ws://host/socket). No network activity happens until Connect.
func NewClient(socketURL, userID string, opts Options) *Client {
	return &Client{
		socketURL: socketURL,
		userID:    userID,
		opts:      opts.withDefaults(),
		events:    make(chan Event, 16),
		done:      make(chan struct{}),
	}
}

// Connect dials the socket, announces the user with a join frame, and starts
// reading. After a successful Connect the client keeps itself connected with
// backoff until Close is called.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return &ChannelError{Err: err}
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readLoop(conn)
	log.Info("push channel connected for user %s", c.userID)
	return nil
}

// Events returns the inbound notification stream. The channel is closed when
// the client shuts down for good.
func (c *Client) Events() <-chan Event { return c.events }

// Close tears the connection down and stops reconnecting. Safe to call more
// than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			deadline := time.Now().Add(time.Second)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
		}
		log.Info("push channel closed for user %s", c.userID)
	})
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.socketURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("id", c.userID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(joinFrame{Type: "join", ID: c.userID}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// readLoop pumps events from conn until it drops, then reconnects unless the
// client was closed. It owns the events channel and closes it on exit.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.events)
	for {
		c.pump(conn)
		conn.Close()
		select {
		case <-c.done:
			return
		default:
		}
		next, ok := c.reconnect()
		if !ok {
			return
		}
		conn = next
	}
}

func (c *Client) pump(conn *websocket.Conn) {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("push connection dropped: %v", err)
			} else {
				log.Debug("push connection closed: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// reconnect redials with capped exponential backoff and jitter. Returns false
// when the client was closed or MaxRetries is exhausted.
func (c *Client) reconnect() (*websocket.Conn, bool) {
	backoff := c.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		if c.opts.MaxRetries > 0 && attempt > c.opts.MaxRetries {
			log.Error("push channel gave up after %d reconnect attempts", c.opts.MaxRetries)
			return nil, false
		}
		wait := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
		select {
		case <-c.done:
			return nil, false
		case <-time.After(wait):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			c.mu.Lock()
			closed := false
			select {
			case <-c.done:
				closed = true
			default:
				c.conn = conn
			}
			c.mu.Unlock()
			if closed {
				conn.Close()
				return nil, false
			}
			log.Info("push channel reconnected for user %s (attempt %d)", c.userID, attempt)
			return conn, true
		}
		log.Warn("push reconnect attempt %d failed: %v", attempt, err)
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}
