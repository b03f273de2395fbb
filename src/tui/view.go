// Package tui renders the fixed-layout terminal screen shared by the chat
// client and the server's operator console, and manages raw terminal mode.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	xterm "golang.org/x/term"
)

const (
	clearScreen = "\x1b[2J"
	cursorHome  = "\x1b[H"
	prompt      = "> "

	// Rows reserved for chrome: title, subtitle, separator, hint, input.
	fixedChrome = 5

	defaultWidth  = 80
	defaultHeight = 24
)

// View repaints the whole screen from current state on every call. Repeated
// renders with unchanged state produce identical output. Paints are
// serialized; the server console repaints from whichever goroutine logged.
type View struct {
	out      io.Writer
	title    string
	subtitle string
	size     func() (width, height int)

	mu sync.Mutex
}

// NewView creates a renderer writing to out, usually os.Stdout.
func NewView(out io.Writer, title, subtitle string) *View {
	return &View{
		out:      out,
		title:    title,
		subtitle: subtitle,
		size:     func() (int, int) { return terminalSize(out) },
	}
}

// SetSize overrides terminal size detection. Used by tests.
func (v *View) SetSize(fn func() (width, height int)) { v.size = fn }

// Render paints the header, the most recent content lines that fit the body,
// and a footer with hint text plus the pending input line. Older lines are
// merely scrolled out of view, not removed from the caller's buffer. The
// cursor lands immediately after the typed text.
func (v *View) Render(lines []string, hint, input string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	width, height := v.size()
	body := height - fixedChrome
	if body < 1 {
		body = 1
	}

	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(cursorHome)
	b.WriteString(truncate(v.title, width) + "\r\n")
	b.WriteString(truncate(v.subtitle, width) + "\r\n")
	b.WriteString(strings.Repeat("-", width) + "\r\n")

	start := 0
	if len(lines) > body {
		start = len(lines) - body
	}
	for _, line := range lines[start:] {
		b.WriteString(truncate(line, width) + "\r\n")
	}
	for i := len(lines) - start; i < body; i++ {
		b.WriteString("\r\n")
	}

	b.WriteString(truncate(hint, width) + "\r\n")
	b.WriteString(prompt + input)
	fmt.Fprintf(&b, "\x1b[%d;%dH", height, len(prompt)+len(input)+1)

	_, _ = io.WriteString(v.out, b.String())
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}

func terminalSize(out io.Writer) (int, int) {
	if f, ok := out.(*os.File); ok && xterm.IsTerminal(int(f.Fd())) {
		if w, h, err := xterm.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return defaultWidth, defaultHeight
}
