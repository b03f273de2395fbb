package types

import "net"

// Envelope types exchanged on the wire.
const (
	TypeJoin   = "join"
	TypeChat   = "chat"
	TypeLeave  = "leave"
	TypeSystem = "system"
)

// TimestampLayout is how envelope timestamps are formatted. Timestamps are
// informational only; ordering on the wire is transport order.
const TimestampLayout = "15:04:05"

// Envelope is one protocol message exchanged between client and server.
// It is serialized as a single JSON object per newline-terminated frame.
// Decoders must ignore unknown fields for forward compatibility.
type Envelope struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	Username  string `json:"username"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Conn abstracts a bidirectional byte stream for testability.
// *net.TCPConn satisfies everything but RemoteAddr's return type,
// so transports wrap it with a thin adapter.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	RemoteAddr() string
}

// WrapConn adapts a net.Conn to the Conn interface.
func WrapConn(c net.Conn) Conn { return netConn{c} }

type netConn struct{ net.Conn }

func (c netConn) RemoteAddr() string { return c.Conn.RemoteAddr().String() }
