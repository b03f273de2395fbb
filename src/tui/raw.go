package tui

import (
	"fmt"
	"os"
	"sync"

	xterm "golang.org/x/term"
)

// RawMode holds the saved terminal state so it can be restored exactly once
// regardless of which exit path runs first.
type RawMode struct {
	fd    int
	state *xterm.State
	once  sync.Once
}

// EnterRaw switches the terminal into raw mode: keystrokes are delivered
// immediately and unechoed.
func EnterRaw(f *os.File) (*RawMode, error) {
	fd := int(f.Fd())
	state, err := xterm.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("tui: enter raw mode: %w", err)
	}
	return &RawMode{fd: fd, state: state}, nil
}

// Restore re-enables echo and canonical input. Safe to call from every exit
// path; only the first call touches the terminal.
func (m *RawMode) Restore() {
	m.once.Do(func() { _ = xterm.Restore(m.fd, m.state) })
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return xterm.IsTerminal(int(f.Fd()))
}
