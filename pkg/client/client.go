// Package client implements a gotable client connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/gotable/pkg/protocol"
	"github.com/NicolasHaas/gotable/pkg/transport"
)

// ErrRejected is returned by Join when the server answers Failed or Full.
var ErrRejected = errors.New("client: join rejected")

// EventHandler is a callback for incoming table messages.
type EventHandler func(msg protocol.Message)

// Client is one connection to a table session.
type Client struct {
	conn    transport.Conn
	handler EventHandler
	done    chan struct{}
}

// Dial connects to a session over TCP.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return New(transport.NewFramedConn(conn)), nil
}

// DialWS connects to a session over WebSocket, e.g. "ws://127.0.0.1:3000/ws".
func DialWS(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("client: connect ws: %w", err)
	}
	return New(transport.NewWSConn(conn)), nil
}

// New wraps an established framed connection.
func New(conn transport.Conn) *Client {
	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}
}

// SetEventHandler sets the callback for incoming messages.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// Join sends the handshake and waits for the reply. A Failed or Full reply
// is returned together with an error wrapping ErrRejected.
func (c *Client) Join(name, code string) (protocol.HandshakeResponse, error) {
	data, err := protocol.Encode(protocol.HandshakeRequest{Name: name, Code: code})
	if err != nil {
		return protocol.HandshakeResponse{}, err
	}
	if err := c.conn.Send(data); err != nil {
		return protocol.HandshakeResponse{}, fmt.Errorf("client: send handshake: %w", err)
	}

	data, err = c.conn.Recv()
	if err != nil {
		return protocol.HandshakeResponse{}, fmt.Errorf("client: read handshake response: %w", err)
	}
	resp, err := protocol.DecodeHandshakeResponse(data)
	if err != nil {
		return protocol.HandshakeResponse{}, err
	}
	if resp.Status != protocol.StatusSuccess {
		return resp, fmt.Errorf("%w: %s", ErrRejected, resp.Status)
	}
	return resp, nil
}

// Send sends one message to the server.
func (c *Client) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.conn.Send(data)
}

// Recv reads the next message. Do not mix with StartReceiving.
func (c *Client) Recv() (protocol.Message, error) {
	data, err := c.conn.Recv()
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.DecodeMessage(data)
}

// RecvTimeout reads the next message, giving up after d.
func (c *Client) RecvTimeout(d time.Duration) (protocol.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return protocol.Message{}, err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	return c.Recv()
}

// StartReceiving starts a goroutine that reads incoming messages
// and dispatches them to the event handler.
func (c *Client) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			msg, err := c.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					slog.Debug("table connection closed")
					return
				}
				slog.Error("table read error", "err", err)
				return
			}
			if c.handler != nil {
				c.handler(msg)
			}
		}
	}()
}

// Leave tells the server this player is leaving and closes the connection.
func (c *Client) Leave() error {
	err := c.Send(protocol.New(protocol.KindClose))
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the connection without notifying the server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done returns a channel that's closed when the receive loop stops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
