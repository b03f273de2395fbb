package hub

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/jonerickson/tui-chat/src/protocol"
	"github.com/jonerickson/tui-chat/src/types"
)

const (
	sendBufferSize = 64
	readBufferSize = 4096
)

type connState int

const (
	stateUnidentified connState = iota
	stateActive
	stateClosed
)

// Client is one accepted connection. Identity fields are owned by the hub
// event loop; the mutex only guards the close-once handshake with the pumps.
type Client struct {
	ID       string
	Username string
	Room     string

	state  connState
	conn   types.Conn
	hub    *Hub
	send   chan []byte
	logger zerolog.Logger

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewClient wraps an accepted transport stream. The ID must be unique for
// the connection's lifetime; the server allocates one at accept time.
func NewClient(id string, conn types.Conn, h *Hub, logger zerolog.Logger) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.With().Str("client_id", id).Logger(),
		done:   make(chan struct{}),
	}
}

// ReadPump reads transport data, splits it into frames, and forwards decoded
// envelopes to the hub. Malformed frames are logged and dropped without
// affecting the connection. Call in a goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			var frames [][]byte
			frames, pending = protocol.ExtractFrames(pending)
			for _, frame := range frames {
				env, derr := protocol.Decode(frame)
				if derr != nil {
					c.logger.Warn().Err(derr).Msg("dropping malformed frame")
					continue
				}
				select {
				case c.hub.inbound <- inbound{clientID: c.ID, env: env}:
				case <-c.done:
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// WritePump drains the send buffer onto the transport. A write failure is
// treated the same as a peer disconnect. Call in a goroutine.
func (c *Client) WritePump() {
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if _, err := c.conn.Write(data); err != nil {
				c.logger.Warn().Err(err).Msg("transport write failed")
				c.hub.Unregister(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// trySend queues data for the write pump without blocking the event loop.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close releases the client's channels exactly once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	close(c.send)
}
