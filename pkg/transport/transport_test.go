package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestFramedConnPipe(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := NewFramedConn(a), NewFramedConn(b)
	defer ca.Close()
	defer cb.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- ca.Send([]byte("hello")) }()

	got, err := cb.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Recv = %q, want hello", got)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestFramedConnReadDeadline(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	cb := NewFramedConn(b)
	defer cb.Close()

	if err := cb.SetReadDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, err := cb.Recv()
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("want timeout error, got %v", err)
	}
}

func TestTCPListenerAcceptAndClose(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}

	accepted := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	raw, err := net.Dial("tcp", ln.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client := NewFramedConn(raw)
	defer client.Close()

	var server Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("Accept timed out")
	}
	defer server.Close()

	if err := client.Send([]byte(`{"type":"check"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := server.Recv()
	if err != nil || string(got) != `{"type":"check"}` {
		t.Fatalf("Recv = %q, %v", got, err)
	}
	if server.RemoteAddr() != raw.LocalAddr().String() {
		t.Fatalf("RemoteAddr = %s, want %s", server.RemoteAddr(), raw.LocalAddr())
	}

	_ = ln.Close()
	if _, err := ln.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("Accept after Close: want net.ErrClosed, got %v", err)
	}
}

func TestWSListenerRoundTrip(t *testing.T) {
	ln, err := ListenWS("127.0.0.1:0", "/ws")
	if err != nil {
		t.Fatalf("ListenWS: %v", err)
	}
	defer ln.Close()

	accepted := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	raw, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client := NewWSConn(raw)
	defer client.Close()

	var server Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("Accept timed out")
	}
	defer server.Close()

	if err := server.Send([]byte(`{"type":"fold"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := client.Recv()
	if err != nil || string(got) != `{"type":"fold"}` {
		t.Fatalf("Recv = %q, %v", got, err)
	}
}

func TestWSListenerAcceptAfterClose(t *testing.T) {
	ln, err := ListenWS("127.0.0.1:0", "/ws")
	if err != nil {
		t.Fatalf("ListenWS: %v", err)
	}
	_ = ln.Close()
	_ = ln.Close()
	if _, err := ln.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("Accept after Close: want net.ErrClosed, got %v", err)
	}
}

func TestListenUnknownTransport(t *testing.T) {
	if _, err := Listen("quic", "127.0.0.1:0", ""); err == nil {
		t.Fatalf("expected error for unknown transport")
	}
}
