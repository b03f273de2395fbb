// Package client implements the interactive chat client: connection
// lifecycle, command dispatch, and the loop multiplexing raw keyboard input
// with inbound socket frames so that neither source starves the other.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonerickson/tui-chat/src/protocol"
	"github.com/jonerickson/tui-chat/src/tui"
	"github.com/jonerickson/tui-chat/src/types"
)

// ErrDisconnected reports that the server connection was lost. Fatal for the
// client; there is no useful degraded mode without a connection.
var ErrDisconnected = errors.New("client: server connection lost")

const (
	ctrlC     = 0x03
	backspace = 0x7f

	hintText = "Enter to send | /help for commands | Ctrl-C to quit"

	readBufferSize     = 4096
	defaultHistorySize = 100
)

// Item is one displayed entry in the session buffer. Self marks lines the
// local user authored; the server never echoes those back.
type Item struct {
	Envelope types.Envelope
	Self     bool
}

// Session drives one connection to the chat server. The Run loop owns all
// mutation; mu guards room and items so observers outside the loop can read
// them while it runs.
type Session struct {
	username string
	conn     types.Conn
	view     *tui.View
	logger   zerolog.Logger

	mu   sync.Mutex
	room string

	historySize int
	items       []Item
	input       []byte
	connected   bool

	keys   chan byte
	frames chan types.Envelope
	netErr chan error
}

// Dial connects to the chat server at addr.
func Dial(addr string) (types.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect to %s: %w", addr, err)
	}
	return types.WrapConn(conn), nil
}

// NewSession creates a session over an established connection.
func NewSession(conn types.Conn, view *tui.View, username, room string, historySize int, logger zerolog.Logger) *Session {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Session{
		username:    username,
		room:        room,
		conn:        conn,
		view:        view,
		logger:      logger.With().Str("component", "session").Logger(),
		historySize: historySize,
		keys:        make(chan byte, 16),
		frames:      make(chan types.Envelope, 16),
		netErr:      make(chan error, 1),
	}
}

// Run joins the configured room and services keyboard and socket input until
// quit, signal, or transport loss. Join is fire-and-forget: the welcome
// notice from the server is informational only.
func (s *Session) Run(keyboard io.Reader, signals <-chan os.Signal) error {
	if err := s.join(s.room); err != nil {
		return err
	}
	s.connected = true
	s.appendSystem(fmt.Sprintf("Connected as %s. Type /help for commands.", s.username))
	s.redraw()

	go s.readKeys(keyboard)
	go s.readFrames()

	for {
		select {
		case b := <-s.keys:
			quit, err := s.handleKey(b)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		case env := <-s.frames:
			s.appendItem(Item{Envelope: env})
			s.redraw()
		case err := <-s.netErr:
			s.connected = false
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		case <-signals:
			s.leaveQuietly()
			return nil
		}
	}
}

// readKeys forwards raw keyboard bytes to the session loop.
func (s *Session) readKeys(r io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.keys <- buf[0]
		}
		if err != nil {
			return
		}
	}
}

// readFrames splits socket reads into frames and forwards decoded envelopes.
// A read error means the transport is gone.
func (s *Session) readFrames() {
	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			var frames [][]byte
			frames, pending = protocol.ExtractFrames(pending)
			for _, frame := range frames {
				env, derr := protocol.Decode(frame)
				if derr != nil {
					s.logger.Warn().Err(derr).Msg("dropping malformed frame")
					continue
				}
				s.frames <- env
			}
		}
		if err != nil {
			s.netErr <- err
			return
		}
	}
}

func (s *Session) handleKey(b byte) (quit bool, err error) {
	switch {
	case b == ctrlC:
		s.leaveQuietly()
		return true, nil
	case b == '\r' || b == '\n':
		return s.submitLine()
	case b == backspace || b == 0x08:
		if len(s.input) > 0 {
			s.input = s.input[:len(s.input)-1]
		}
		s.redraw()
	case b >= 0x20 && b < 0x7f:
		s.input = append(s.input, b)
		s.redraw()
	}
	return false, nil
}

// submitLine consumes the pending input buffer. Blank lines are dropped;
// slash lines go to command dispatch; everything else is sent as chat.
func (s *Session) submitLine() (quit bool, err error) {
	line := strings.TrimSpace(string(s.input))
	s.input = s.input[:0]
	if line == "" {
		s.redraw()
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return s.dispatchCommand(line)
	}
	if err := s.sendChat(line); err != nil {
		return false, err
	}
	s.redraw()
	return false, nil
}

// sendChat sends the line to the server and shows it locally right away;
// the server broadcasts to everyone in the room except the sender.
func (s *Session) sendChat(text string) error {
	env := types.Envelope{
		Type:      types.TypeChat,
		Room:      s.room,
		Username:  s.username,
		Message:   text,
		Timestamp: time.Now().Format(types.TimestampLayout),
	}
	if err := s.send(env); err != nil {
		return err
	}
	s.appendItem(Item{Envelope: env, Self: true})
	return nil
}

func (s *Session) send(env types.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(data); err != nil {
		s.connected = false
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

func (s *Session) join(room string) error {
	return s.send(types.Envelope{
		Type:      types.TypeJoin,
		Room:      room,
		Username:  s.username,
		Timestamp: time.Now().Format(types.TimestampLayout),
	})
}

func (s *Session) leave() error {
	return s.send(types.Envelope{
		Type:     types.TypeLeave,
		Room:     s.room,
		Username: s.username,
	})
}

// leaveQuietly is the best-effort notification on teardown paths.
func (s *Session) leaveQuietly() {
	_ = s.leave()
}

func (s *Session) appendItem(it Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, it)
	if len(s.items) > s.historySize {
		s.items = s.items[len(s.items)-s.historySize:]
	}
}

func (s *Session) appendSystem(text string) {
	s.appendItem(Item{Envelope: types.Envelope{
		Type:      types.TypeSystem,
		Username:  "System",
		Message:   text,
		Timestamp: time.Now().Format(types.TimestampLayout),
	}})
}

// Items returns a snapshot of the display buffer. Safe while Run is active.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Room returns the room the session currently occupies. Safe while Run is
// active.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) redraw() {
	items := s.Items()
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, formatItem(it))
	}
	s.view.Render(lines, hintText, string(s.input))
}

func formatItem(it Item) string {
	env := it.Envelope
	if env.Type == types.TypeSystem {
		return fmt.Sprintf("[%s] * %s", env.Timestamp, env.Message)
	}
	name := env.Username
	if it.Self {
		name = "you"
	}
	return fmt.Sprintf("[%s] %s: %s", env.Timestamp, name, env.Message)
}
