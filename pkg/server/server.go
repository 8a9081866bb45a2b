// Package server implements the table session server: it admits players
// that know the room code, keeps the roster, relays gameplay actions
// between players and tears the room down when the host ends the session.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/NicolasHaas/gotable/pkg/protocol"
	"github.com/NicolasHaas/gotable/pkg/transport"
)

// State is the session lifecycle state.
type State int32

const (
	StateWaiting    State = iota // accepting players
	StateRunning                 // game started, room sealed
	StateClosing                 // teardown in progress
	StateTerminated              // final
)

func (st State) String() string {
	switch st {
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var (
	ErrSessionClosed  = errors.New("server: session closed")
	ErrAlreadyStarted = errors.New("server: already started")
	ErrUnknownPlayer  = errors.New("server: no such player")
	ErrNotRunning     = errors.New("server: session not started")
	ErrGameStarted    = errors.New("server: game already started")
)

// lifecycleSignal is what the host sends on the control channel.
type lifecycleSignal int

const (
	signalStart lifecycleSignal = iota
	signalEnd
)

// Dependencies holds hooks supplied by the embedding application.
type Dependencies struct {
	// OnTick is called on every tick while the session is Running.
	// It runs on the controller goroutine and must not block.
	OnTick func(ctx context.Context, roster []protocol.UserInfo)
}

// Server is one table session. Construct a fresh Server per session;
// a terminated Server cannot be restarted.
type Server struct {
	cfg      Config
	deps     Dependencies
	id       string
	log      *slog.Logger
	registry *Registry
	metrics  *Metrics
	tasks    *supervisor
	validate *validator.Validate

	listener transport.Listener
	accepted chan transport.Conn
	signals  chan lifecycleSignal // single slot
	closing  chan struct{}        // closed when teardown begins
	done     chan struct{}        // closed when Terminated

	state       atomic.Int32
	started     atomic.Bool
	gameStarted atomic.Bool // SignalStart accepted once

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance. Nothing is bound until Start.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	id := ulid.Make().String()
	return &Server{
		cfg:      cfg,
		deps:     deps,
		id:       id,
		log:      slog.Default().With("session", id),
		registry: NewRegistry(),
		metrics:  NewMetrics(),
		tasks:    newSupervisor(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		accepted: make(chan transport.Conn),
		signals:  make(chan lifecycleSignal, 1),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// StartSession binds bindAddr and starts a session for the given room code and capacity.
// A bind failure is the only error it returns.
func StartSession(bindAddr, code string, capacity int) (*Server, error) {
	cfg := DefaultConfig()
	cfg.BindAddr = bindAddr
	cfg.Code = code
	cfg.Capacity = capacity
	s := New(cfg, Dependencies{})
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Server) ID() string {
	return s.id
}

// Registry returns the session roster.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the session metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.log.Info("session state changed", "from", prev, "to", st)
	}
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr()
}

// Done is closed once the session is Terminated.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session is Terminated.
func (s *Server) Wait() {
	<-s.done
}

// outboundIP returns the local address this host uses for outbound traffic.
// Dialing UDP sends no packets.
func outboundIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, fmt.Errorf("server: detect local ip: %w", err)
	}
	defer func() { _ = conn.Close() }()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("server: detect local ip: unexpected address %s", conn.LocalAddr())
	}
	return addr.IP, nil
}
