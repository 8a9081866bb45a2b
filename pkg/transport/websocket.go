package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/gotable/pkg/protocol"
)

// WSConn carries one frame per binary WebSocket message.
type WSConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// NewWSConn wraps an upgraded or dialed WebSocket connection.
func NewWSConn(conn *websocket.Conn) *WSConn {
	conn.SetReadLimit(protocol.MaxFrameSize)
	return &WSConn{conn: conn}
}

func (c *WSConn) Send(payload []byte) error {
	if len(payload) > protocol.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", protocol.ErrFrameTooLarge, len(payload))
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("transport: write message: %w", err)
	}
	return nil
}

func (c *WSConn) Recv() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("transport: read message: %w", err)
		}
		if mt == websocket.BinaryMessage || mt == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *WSConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }
func (c *WSConn) RemoteAddr() string                { return c.conn.RemoteAddr().String() }
func (c *WSConn) Close() error                      { return c.conn.Close() }

// WSListener serves a WebSocket upgrade endpoint and hands out the upgraded connections.
type WSListener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	conns    chan Conn

	closeOnce sync.Once
	closed    chan struct{}
}

// ListenWS binds addr and serves WebSocket upgrades on path.
func ListenWS(addr, path string) (*WSListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen ws: %w", err)
	}
	if path == "" {
		path = "/"
	}

	l := &WSListener{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Admission is decided by the room code, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns:  make(chan Conn),
		closed: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket listener error", "addr", addr, "err", err)
		}
	}()
	return l, nil
}

func (l *WSListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	select {
	case l.conns <- NewWSConn(conn):
	case <-l.closed:
		_ = conn.Close()
	}
}

func (l *WSListener) Accept() (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, fmt.Errorf("transport: accept: %w", net.ErrClosed)
	}
}

func (l *WSListener) Addr() string { return l.ln.Addr().String() }

func (l *WSListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.srv.Close()
	})
	return err
}
