package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const defaultConnectTimeout = 15 * time.Second

// Dialer connects to the transport collaborator with an ephemeral media
// token. The zero value is usable.
type Dialer struct {
	// ConnectTimeout bounds the websocket handshake. Zero means 15s.
	ConnectTimeout time.Duration
}

// Connect dials wsURL and authenticates with the ephemeral token issued
// for one session's media room. The returned Conn delivers inbound events
// until Disconnect is called or the remote side ends the session.
func (d Dialer) Connect(ctx context.Context, token, wsURL string) (*Conn, error) {
	if token == "" {
		return nil, fmt.Errorf("media token is required")
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported transport scheme %q", u.Scheme)
	}

	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport handshake failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Conn{
		ws:     ws,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Conn is one live transport connection.
type Conn struct {
	ws *websocket.Conn

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Events yields inbound transport events. The channel closes after a
// DisconnectedEvent has been delivered (or the connection drops).
func (c *Conn) Events() <-chan Event {
	if c == nil {
		return nil
	}
	return c.events
}

// Disconnect closes the connection. Safe to call more than once.
func (c *Conn) Disconnect() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
	<-c.done
	return nil
}

// Err returns the terminal connection error, nil for a clean close.
// It blocks until the connection has fully shut down.
func (c *Conn) Err() error {
	if c == nil {
		return nil
	}
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.closed.Load() {
				c.emit(DisconnectedEvent{Reason: "closed"})
				return
			}
			c.setErr(err)
			c.emit(DisconnectedEvent{Reason: "connection lost", Err: err})
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event, err := decodeFrame(data)
		if err != nil {
			c.setErr(fmt.Errorf("malformed transport frame: %w", err))
			c.emit(DisconnectedEvent{Reason: "protocol error", Err: err})
			return
		}
		c.emit(event)
		if _, ended := event.(DisconnectedEvent); ended {
			_ = c.ws.Close()
			return
		}
	}
}

// emit drops a non-terminal event if the consumer stalls rather than
// blocking the read loop. The terminal DisconnectedEvent is always
// delivered: the loop returns right after it and the channel close
// follows, and losing it would leave the consumer holding a dead
// connection it still believes is up.
func (c *Conn) emit(event Event) {
	if _, terminal := event.(DisconnectedEvent); terminal {
		c.events <- event
		return
	}
	select {
	case c.events <- event:
	case <-time.After(5 * time.Second):
	}
}
