package client

import (
	"fmt"
	"strings"
)

var helpLines = []string{
	"Commands:",
	"  /room <name>  switch rooms (or show the current room)",
	"  /clear        clear the message history",
	"  /help         show this summary",
	"  /quit, /exit  leave and exit",
}

// dispatchCommand handles a submitted line starting with "/".
func (s *Session) dispatchCommand(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/quit", "/exit":
		s.leaveQuietly()
		return true, nil

	case "/clear":
		s.mu.Lock()
		s.items = nil
		s.mu.Unlock()
		s.redraw()

	case "/help":
		for _, l := range helpLines {
			s.appendSystem(l)
		}
		s.redraw()

	case "/room":
		if len(fields) < 2 || fields[1] == s.room {
			s.appendSystem(fmt.Sprintf("You are in #%s.", s.room))
			s.redraw()
			return false, nil
		}
		if err := s.switchRoom(fields[1]); err != nil {
			return false, err
		}

	default:
		s.appendSystem(fmt.Sprintf("Unknown command %s. Type /help for the list.", cmd))
		s.redraw()
	}
	return false, nil
}

// switchRoom leaves the current room, joins the new one, and starts over
// with a fresh display buffer.
func (s *Session) switchRoom(room string) error {
	if err := s.leave(); err != nil {
		return err
	}
	s.mu.Lock()
	s.room = room
	s.items = nil
	s.mu.Unlock()
	if err := s.join(room); err != nil {
		return err
	}
	s.appendSystem(fmt.Sprintf("Switched to #%s.", room))
	s.redraw()
	return nil
}
