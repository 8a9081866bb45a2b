// Package transport turns byte streams into discrete message frames.
//
// Two transports are provided: length-prefixed frames over TCP (the default)
// and binary WebSocket messages. Both are exposed through Conn and Listener
// so the server never sees which one is in use.
package transport

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/NicolasHaas/gotable/pkg/protocol"
)

// Conn is an established, framed connection.
// Send is safe for concurrent use; Recv must be called from one goroutine.
type Conn interface {
	Send(payload []byte) error
	Recv() ([]byte, error)
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// Listener accepts framed connections. Accept returns an error wrapping
// net.ErrClosed once Close has been called.
type Listener interface {
	Accept() (Conn, error)
	Addr() string
	Close() error
}

// FramedConn carries length-prefixed frames over a stream connection.
type FramedConn struct {
	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex
}

// NewFramedConn wraps a stream connection.
func NewFramedConn(conn net.Conn) *FramedConn {
	return &FramedConn{conn: conn, r: bufio.NewReader(conn)}
}

// Send writes one frame.
func (c *FramedConn) Send(payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.WriteFrame(c.conn, payload)
}

// Recv reads one frame.
func (c *FramedConn) Recv() ([]byte, error) {
	return protocol.ReadFrame(c.r)
}

func (c *FramedConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }
func (c *FramedConn) RemoteAddr() string                { return c.conn.RemoteAddr().String() }
func (c *FramedConn) Close() error                      { return c.conn.Close() }

// TCPListener accepts FramedConns.
type TCPListener struct {
	ln net.Listener
}

// ListenTCP binds a TCP listener for framed connections.
func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp: %w", err)
	}
	return &TCPListener{ln: ln}, nil
}

func (l *TCPListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewFramedConn(conn), nil
}

func (l *TCPListener) Addr() string { return l.ln.Addr().String() }
func (l *TCPListener) Close() error { return l.ln.Close() }

// Listen binds a listener for the named transport ("tcp" or "ws").
// path is the upgrade endpoint for "ws" and ignored otherwise.
func Listen(kind, addr, path string) (Listener, error) {
	switch kind {
	case "", "tcp":
		return ListenTCP(addr)
	case "ws":
		return ListenWS(addr, path)
	default:
		return nil, fmt.Errorf("transport: unknown transport %q", kind)
	}
}
