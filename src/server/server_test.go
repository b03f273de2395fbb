package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonerickson/tui-chat/src/hub"
	"github.com/jonerickson/tui-chat/src/protocol"
	"github.com/jonerickson/tui-chat/src/store"
	"github.com/jonerickson/tui-chat/src/types"
)

func startServer(t *testing.T) (*Server, *hub.Hub) {
	t.Helper()
	h := hub.New(hub.NewRateLimiter(time.Minute, 100), store.Nop{}, zerolog.Nop())
	go h.Run()

	srv := New("127.0.0.1:0", h, zerolog.Nop())
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve() }()

	t.Cleanup(func() {
		_ = srv.Close()
		h.Stop()
	})
	return srv, h
}

// peer is a raw TCP chat participant for end-to-end tests.
type peer struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialPeer(t *testing.T, addr string) *peer {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{conn: conn, r: bufio.NewReader(conn)}
}

func (p *peer) send(t *testing.T, env types.Envelope) {
	t.Helper()
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	_, err = p.conn.Write(data)
	require.NoError(t, err)
}

// next reads one frame off the wire, failing the test on timeout.
func (p *peer) next(t *testing.T) types.Envelope {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := p.r.ReadBytes('\n')
	require.NoError(t, err)
	env, err := protocol.Decode(line)
	require.NoError(t, err)
	return env
}

func TestAddrReportsBoundPort(t *testing.T) {
	srv, _ := startServer(t)
	addr := srv.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)
}

func TestServeBeforeListenFails(t *testing.T) {
	h := hub.New(hub.NewRateLimiter(time.Minute, 100), store.Nop{}, zerolog.Nop())
	srv := New("127.0.0.1:0", h, zerolog.Nop())
	assert.Error(t, srv.Serve())
}

func TestEndToEndChat(t *testing.T) {
	srv, h := startServer(t)

	alice := dialPeer(t, srv.Addr())
	alice.send(t, types.Envelope{Type: types.TypeJoin, Username: "alice", Room: "general"})
	welcome := alice.next(t)
	assert.Equal(t, types.TypeSystem, welcome.Type)
	assert.Equal(t, "Welcome to #general, alice!", welcome.Message)

	bob := dialPeer(t, srv.Addr())
	bob.send(t, types.Envelope{Type: types.TypeJoin, Username: "bob", Room: "general"})
	assert.Equal(t, "Welcome to #general, bob!", bob.next(t).Message)

	// Alice hears about the newcomer before any chat arrives.
	assert.Equal(t, "bob joined the chat.", alice.next(t).Message)

	alice.send(t, types.Envelope{Type: types.TypeChat, Message: "hi bob"})
	chat := bob.next(t)
	assert.Equal(t, types.TypeChat, chat.Type)
	assert.Equal(t, "general", chat.Room)
	assert.Equal(t, "alice", chat.Username)
	assert.Equal(t, "hi bob", chat.Message)
	assert.NotEmpty(t, chat.Timestamp)

	assert.Equal(t, 2, h.ClientCount())
	assert.Equal(t, 1, h.RoomCount())
}

func TestPeerDisconnectCleansUp(t *testing.T) {
	srv, h := startServer(t)

	alice := dialPeer(t, srv.Addr())
	alice.send(t, types.Envelope{Type: types.TypeJoin, Username: "alice", Room: "general"})
	alice.next(t) // welcome

	bob := dialPeer(t, srv.Addr())
	bob.send(t, types.Envelope{Type: types.TypeJoin, Username: "bob", Room: "general"})
	bob.next(t) // welcome

	require.NoError(t, alice.conn.Close())

	left := bob.next(t)
	assert.Equal(t, types.TypeSystem, left.Type)
	assert.Equal(t, "alice left the chat.", left.Message)

	require.Eventually(t, func() bool {
		return h.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCloseStopsAccepting(t *testing.T) {
	srv, _ := startServer(t)
	addr := srv.Addr()

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close(), "Close must be idempotent")

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
}
