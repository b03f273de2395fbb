// Package hub implements the server session engine: the connection registry,
// room directory, broadcaster, and rate limiter, driven by a single event
// loop that owns all mutable state.
package hub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonerickson/tui-chat/src/store"
	"github.com/jonerickson/tui-chat/src/types"
)

const (
	// DefaultUsername is assigned when a join frame carries no username.
	DefaultUsername = "Anonymous"
	// DefaultRoom is assigned when a join frame carries no room.
	DefaultRoom = "general"

	storeTimeout = 5 * time.Second
)

type inbound struct {
	clientID string
	env      types.Envelope
}

// Hub owns every connection record and room membership set. State mutation
// happens only on the Run goroutine; reader and writer pumps just move bytes
// and events, so handlers run to completion without interleaving. The mutex
// exists for read-side queries (operator console, tests), not for handlers.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	limiter *RateLimiter
	store   store.Store
	logger  zerolog.Logger

	mu   sync.RWMutex
	done chan struct{}
	stop sync.Once
}

// New creates a hub backed by the given rate limiter and persistence store.
func New(limiter *RateLimiter, st store.Store, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 256),
		limiter:    limiter,
		store:      st,
		logger:     logger.With().Str("component", "hub").Logger(),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case in := <-h.inbound:
			h.handleFrame(in)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop halts the event loop and tears down every connection.
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

// Register queues a newly accepted connection.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
		_ = c.conn.Close()
	}
}

// Unregister queues a connection for the disconnection path. Safe to call
// more than once for the same connection.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Str("remote", c.conn.RemoteAddr()).Msg("connection accepted")
}

// removeClient runs the disconnection path: leave the room, tell the
// remaining members, erase the record.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	room, username := c.Room, c.Username
	wasActive := c.state == stateActive
	if wasActive {
		h.leaveRoomLocked(c.ID, room)
	}
	c.state = stateClosed
	delete(h.clients, c.ID)
	h.mu.Unlock()

	h.limiter.Forget(c.ID)
	c.Close()

	if wasActive {
		h.broadcastToRoom(room, systemEnvelope(fmt.Sprintf("%s left the chat.", username)), c.ID)
	}
	h.logger.Info().Str("client_id", c.ID).Msg("connection closed")
}

func (h *Hub) handleFrame(in inbound) {
	h.mu.RLock()
	c, ok := h.clients[in.clientID]
	h.mu.RUnlock()
	if !ok || c.state == stateClosed {
		return
	}

	switch in.env.Type {
	case types.TypeJoin:
		h.handleJoin(c, in.env)
	case types.TypeChat:
		h.handleChat(c, in.env)
	case types.TypeLeave:
		h.handleLeave(c)
	default:
		h.logger.Warn().Str("client_id", c.ID).Str("type", in.env.Type).Msg("ignoring frame of unknown type")
	}
}

func (h *Hub) handleJoin(c *Client, env types.Envelope) {
	username := strings.TrimSpace(env.Username)
	if username == "" {
		username = DefaultUsername
	}
	room := strings.TrimSpace(env.Room)
	if room == "" {
		room = DefaultRoom
	}

	h.mu.Lock()
	h.joinRoomLocked(c, room)
	c.Username = username
	c.Room = room
	c.state = stateActive
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Str("username", username).Str("room", room).Msg("client joined")

	h.broadcastToRoom(room, systemEnvelope(fmt.Sprintf("%s joined the chat.", username)), c.ID)
	h.sendToClient(c.ID, systemEnvelope(fmt.Sprintf("Welcome to #%s, %s!", room, username)))
}

func (h *Hub) handleChat(c *Client, env types.Envelope) {
	if c.state != stateActive {
		h.logger.Warn().Str("client_id", c.ID).Msg("dropping chat from unidentified connection")
		return
	}
	if !h.limiter.Allow(c.ID) {
		h.logger.Info().Str("client_id", c.ID).Str("username", c.Username).Msg("rate limit exceeded")
		h.sendToClient(c.ID, systemEnvelope("You are sending messages too fast. Slow down."))
		return
	}

	out := types.Envelope{
		Type:      types.TypeChat,
		Room:      c.Room,
		Username:  c.Username,
		Message:   env.Message,
		Timestamp: time.Now().Format(types.TimestampLayout),
	}
	go h.persist(out)
	h.broadcastToRoom(c.Room, out, c.ID)
}

// handleLeave returns the connection to the unidentified state so the same
// transport can join another room. The record itself is erased only when the
// transport goes away.
func (h *Hub) handleLeave(c *Client) {
	if c.state != stateActive {
		return
	}

	h.mu.Lock()
	room, username := c.Room, c.Username
	h.leaveRoomLocked(c.ID, room)
	c.state = stateUnidentified
	c.Username = ""
	c.Room = ""
	h.mu.Unlock()

	h.broadcastToRoom(room, systemEnvelope(fmt.Sprintf("%s left the chat.", username)), c.ID)
	h.logger.Info().Str("client_id", c.ID).Str("username", username).Str("room", room).Msg("client left room")
}

// persist hands a chat envelope to the store. Runs off the event loop;
// failures are logged and never reach the broadcast path.
func (h *Hub) persist(env types.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rec, err := h.store.EnsureRoom(ctx, env.Room)
	if err != nil {
		h.logger.Warn().Err(err).Str("room", env.Room).Msg("store: ensure room failed")
		return
	}
	if err := h.store.AppendMessage(ctx, rec.ID, env.Username, env.Message, time.Now()); err != nil {
		h.logger.Warn().Err(err).Str("room", env.Room).Msg("store: append message failed")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
		_ = c.conn.Close()
	}
	h.logger.Info().Int("count", len(clients)).Msg("closed all connections")
}

func systemEnvelope(message string) types.Envelope {
	return types.Envelope{
		Type:      types.TypeSystem,
		Username:  "System",
		Message:   message,
		Timestamp: time.Now().Format(types.TimestampLayout),
	}
}
