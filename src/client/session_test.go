package client

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonerickson/tui-chat/src/protocol"
	"github.com/jonerickson/tui-chat/src/tui"
	"github.com/jonerickson/tui-chat/src/types"
)

// mockConn implements types.Conn. Reads come from a pipe the test feeds;
// writes are captured for inspection.
type mockConn struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	written []byte

	closeOnce sync.Once
}

func newMockConn() *mockConn {
	pr, pw := io.Pipe()
	return &mockConn{pr: pr, pw: pw}
}

func (m *mockConn) Read(p []byte) (int, error) { return m.pr.Read(p) }

func (m *mockConn) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, p...)
	return len(p), nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() {
		m.pr.Close()
		m.pw.Close()
	})
	return nil
}

func (m *mockConn) RemoteAddr() string { return "mock:0" }

// sent decodes every envelope the session wrote to the connection.
func (m *mockConn) sent(t *testing.T) []types.Envelope {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var envs []types.Envelope
	for _, frame := range protocol.SplitFrames(m.written) {
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		envs = append(envs, env)
	}
	return envs
}

// serve feeds one frame into the session's read side, as the server would.
func (m *mockConn) serve(t *testing.T, env types.Envelope) {
	t.Helper()
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	_, err = m.pw.Write(data)
	require.NoError(t, err)
}

func newTestSession(t *testing.T, historySize int) (*Session, *mockConn) {
	t.Helper()
	conn := newMockConn()
	view := tui.NewView(&bytes.Buffer{}, "test", "test")
	view.SetSize(func() (int, int) { return 80, 24 })
	s := NewSession(conn, view, "alice", "general", historySize, zerolog.Nop())
	return s, conn
}

// press runs bytes through the key handler as if typed.
func press(t *testing.T, s *Session, keys string) (quit bool) {
	t.Helper()
	for i := 0; i < len(keys); i++ {
		q, err := s.handleKey(keys[i])
		require.NoError(t, err)
		if q {
			return true
		}
	}
	return false
}

func TestTypedChatIsSentAndShownLocally(t *testing.T) {
	s, conn := newTestSession(t, 0)

	quit := press(t, s, "hi there\r")
	assert.False(t, quit)

	sent := conn.sent(t)
	require.Len(t, sent, 1)
	assert.Equal(t, types.TypeChat, sent[0].Type)
	assert.Equal(t, "general", sent[0].Room)
	assert.Equal(t, "alice", sent[0].Username)
	assert.Equal(t, "hi there", sent[0].Message)

	items := s.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].Self, "own messages are shown without a server echo")
	assert.Equal(t, "hi there", items[0].Envelope.Message)
}

func TestBlankLineIsNotSent(t *testing.T) {
	s, conn := newTestSession(t, 0)

	press(t, s, "   \r")
	assert.Empty(t, conn.sent(t))
	assert.Empty(t, s.Items())
	assert.Empty(t, s.input, "input buffer clears on submit")
}

func TestBackspaceEditsInput(t *testing.T) {
	s, _ := newTestSession(t, 0)

	press(t, s, "abc")
	press(t, s, string(byte(backspace)))
	assert.Equal(t, "ab", string(s.input))

	// Backspace on empty input is harmless.
	s.input = s.input[:0]
	press(t, s, string(byte(backspace)))
	assert.Empty(t, s.input)
}

func TestControlBytesAreNotInserted(t *testing.T) {
	s, _ := newTestSession(t, 0)

	press(t, s, "a\x01\x1bb")
	assert.Equal(t, "ab", string(s.input))
}

func TestRoomSwitchSendsLeaveThenJoin(t *testing.T) {
	s, conn := newTestSession(t, 0)
	s.appendSystem("old history")

	press(t, s, "/room dev\r")

	sent := conn.sent(t)
	require.Len(t, sent, 2)
	assert.Equal(t, types.TypeLeave, sent[0].Type)
	assert.Equal(t, "general", sent[0].Room)
	assert.Equal(t, types.TypeJoin, sent[1].Type)
	assert.Equal(t, "dev", sent[1].Room)

	assert.Equal(t, "dev", s.Room())
	items := s.Items()
	require.Len(t, items, 1, "history starts over in the new room")
	assert.Equal(t, "Switched to #dev.", items[0].Envelope.Message)
}

func TestRoomWithoutArgumentShowsCurrentRoom(t *testing.T) {
	s, conn := newTestSession(t, 0)

	press(t, s, "/room\r")
	assert.Empty(t, conn.sent(t))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "You are in #general.", items[0].Envelope.Message)
}

func TestRoomSameRoomIsNoOp(t *testing.T) {
	s, conn := newTestSession(t, 0)

	press(t, s, "/room general\r")
	assert.Empty(t, conn.sent(t))
	assert.Equal(t, "general", s.Room())
}

func TestClearEmptiesHistory(t *testing.T) {
	s, _ := newTestSession(t, 0)
	s.appendSystem("one")
	s.appendSystem("two")

	press(t, s, "/clear\r")
	assert.Empty(t, s.Items())
}

func TestHelpListsCommands(t *testing.T) {
	s, _ := newTestSession(t, 0)

	press(t, s, "/help\r")
	items := s.Items()
	require.Len(t, items, len(helpLines))
	assert.Contains(t, items[1].Envelope.Message, "/room")
}

func TestUnknownCommandIsReported(t *testing.T) {
	s, conn := newTestSession(t, 0)

	press(t, s, "/dance\r")
	assert.Empty(t, conn.sent(t))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Envelope.Message, "Unknown command /dance")
}

func TestQuitSendsLeave(t *testing.T) {
	s, conn := newTestSession(t, 0)

	quit := press(t, s, "/quit\r")
	assert.True(t, quit)
	sent := conn.sent(t)
	require.Len(t, sent, 1)
	assert.Equal(t, types.TypeLeave, sent[0].Type)
}

func TestCtrlCQuitsWithLeave(t *testing.T) {
	s, conn := newTestSession(t, 0)

	quit := press(t, s, string(byte(ctrlC)))
	assert.True(t, quit)
	require.Len(t, conn.sent(t), 1)
	assert.Equal(t, types.TypeLeave, conn.sent(t)[0].Type)
}

func TestHistoryIsBounded(t *testing.T) {
	s, _ := newTestSession(t, 3)

	for _, msg := range []string{"1", "2", "3", "4", "5"} {
		s.appendSystem(msg)
	}
	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "3", items[0].Envelope.Message)
	assert.Equal(t, "5", items[2].Envelope.Message)
}

func TestRunMultiplexesKeyboardAndFrames(t *testing.T) {
	s, conn := newTestSession(t, 0)

	keyR, keyW := io.Pipe()
	sigs := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- s.Run(keyR, sigs) }()

	// Join goes out immediately.
	require.Eventually(t, func() bool {
		sent := conn.sent(t)
		return len(sent) == 1 && sent[0].Type == types.TypeJoin
	}, time.Second, 5*time.Millisecond)

	// A frame from the server lands in the display buffer.
	conn.serve(t, types.Envelope{Type: types.TypeChat, Room: "general", Username: "bob", Message: "hey", Timestamp: "01:02:03"})
	require.Eventually(t, func() bool {
		for _, it := range s.Items() {
			if it.Envelope.Message == "hey" && !it.Self {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// Typed input still flows while frames arrive.
	_, err := keyW.Write([]byte("hello bob\r"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		sent := conn.sent(t)
		return len(sent) == 2 && sent[1].Message == "hello bob"
	}, time.Second, 5*time.Millisecond)

	// A signal ends the loop cleanly after a best-effort leave.
	sigs <- os.Interrupt
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after signal")
	}
	sent := conn.sent(t)
	assert.Equal(t, types.TypeLeave, sent[len(sent)-1].Type)
}

func TestObserversAreSafeWhileRunMutates(t *testing.T) {
	s, conn := newTestSession(t, 0)

	keyR, keyW := io.Pipe()
	sigs := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- s.Run(keyR, sigs) }()

	// Hammer the read-side accessors while the loop appends frames and
	// switches rooms.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = s.Items()
					_ = s.Room()
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		conn.serve(t, types.Envelope{Type: types.TypeChat, Room: "general", Username: "bob", Message: fmt.Sprintf("m%d", i), Timestamp: "01:02:03"})
	}
	_, err := keyW.Write([]byte("/room dev\r"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Room() == "dev"
	}, time.Second, 5*time.Millisecond)
	close(stop)
	wg.Wait()

	sigs <- os.Interrupt
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after signal")
	}
}

func TestRunReturnsErrDisconnectedOnTransportLoss(t *testing.T) {
	s, conn := newTestSession(t, 0)

	keyR, _ := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- s.Run(keyR, make(chan os.Signal)) }()

	require.Eventually(t, func() bool {
		return len(conn.sent(t)) == 1
	}, time.Second, 5*time.Millisecond)

	// Server side goes away mid-session.
	require.NoError(t, conn.pw.Close())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after transport loss")
	}
}

func TestFormatItem(t *testing.T) {
	sys := formatItem(Item{Envelope: types.Envelope{Type: types.TypeSystem, Username: "System", Message: "bob joined the chat.", Timestamp: "10:00:00"}})
	assert.Equal(t, "[10:00:00] * bob joined the chat.", sys)

	chat := formatItem(Item{Envelope: types.Envelope{Type: types.TypeChat, Username: "bob", Message: "hey", Timestamp: "10:00:01"}})
	assert.Equal(t, "[10:00:01] bob: hey", chat)

	self := formatItem(Item{Envelope: types.Envelope{Type: types.TypeChat, Username: "alice", Message: "hi", Timestamp: "10:00:02"}, Self: true})
	assert.True(t, strings.HasSuffix(self, "you: hi"))
}
