// Package server accepts TCP connections and feeds them into the hub.
package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonerickson/tui-chat/src/hub"
	"github.com/jonerickson/tui-chat/src/types"
)

// Server binds one TCP address and accepts unboundedly many connections,
// each handed to the hub under a freshly allocated connection ID.
type Server struct {
	addr   string
	hub    *hub.Hub
	logger zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// New creates a server for the given listen address, e.g. ":2785".
func New(addr string, h *hub.Hub, logger zerolog.Logger) *Server {
	return &Server{
		addr:   addr,
		hub:    h,
		logger: logger.With().Str("component", "server").Logger(),
	}
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the bound listen address. Valid after Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("server: Serve called before Listen")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		client := hub.NewClient(uuid.NewString(), types.WrapConn(conn), s.hub, s.logger)
		s.hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}
}

// Close stops accepting. Established connections are torn down by the hub.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}
