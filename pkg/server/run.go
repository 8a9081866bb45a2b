package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NicolasHaas/gotable/pkg/model"
	"github.com/NicolasHaas/gotable/pkg/protocol"
	"github.com/NicolasHaas/gotable/pkg/transport"
)

// Start binds the listener and launches the session controller.
// A bind failure is returned here; nothing after that is fatal.
func (s *Server) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ln, err := transport.Listen(s.cfg.Transport, s.cfg.BindAddr, s.cfg.WSPath)
	if err != nil {
		s.cancel()
		close(s.done)
		s.state.Store(int32(StateTerminated))
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	if ip, err := outboundIP(); err == nil {
		s.log.Info("table session listening",
			"addr", ln.Addr(),
			"local_ip", ip.String(),
			"transport", s.cfg.Transport,
			"capacity", s.cfg.Capacity,
		)
	} else {
		s.log.Info("table session listening", "addr", ln.Addr(), "transport", s.cfg.Transport, "capacity", s.cfg.Capacity)
		s.log.Debug("local ip unavailable", "err", err)
	}

	s.StartMetricsHTTP()
	if s.cfg.MetricsLogInterval > 0 {
		s.metrics.StartPeriodicLog(s.cfg.MetricsLogInterval, s.ctx.Done())
	}

	s.tasks.Go(s.acceptLoop)
	go s.run()
	return nil
}

// SignalStart tells the controller the game has started. Only the first
// call is delivered; later ones return ErrGameStarted.
func (s *Server) SignalStart() error {
	if !s.started.Load() {
		return ErrNotRunning
	}
	if !s.gameStarted.CompareAndSwap(false, true) {
		return ErrGameStarted
	}
	return s.signal(signalStart)
}

// SignalEnd tells the controller to close the session.
func (s *Server) SignalEnd() error {
	return s.signal(signalEnd)
}

func (s *Server) signal(sig lifecycleSignal) error {
	if !s.started.Load() {
		return ErrNotRunning
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.signals <- sig:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Shutdown ends the session and waits for teardown to finish.
func (s *Server) Shutdown() {
	if !s.started.Load() {
		s.cancel()
		return
	}
	_ = s.SignalEnd()
	s.Wait()
}

// acceptLoop hands accepted connections to the controller until the listener closes.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.closing:
				return
			default:
				s.log.Error("accept error", "err", err)
				continue
			}
		}

		select {
		case s.accepted <- conn:
		case <-s.closing:
			_ = conn.Close()
			return
		}
	}
}

// run is the session controller: WaitingForPlayers -> Running -> Closing -> Terminated.
func (s *Server) run() {
	defer s.finish()

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case conn := <-s.accepted:
			s.spawnConn(conn)

		case sig := <-s.signals:
			switch sig {
			case signalStart:
				if s.State() != StateWaiting {
					s.log.Debug("ignoring start signal", "state", s.State())
					continue
				}
				s.registry.Seal()
				s.setState(StateRunning)
				ticker = time.NewTicker(s.cfg.TickInterval)
				tick = ticker.C
			case signalEnd:
				s.teardown()
				return
			}

		case <-tick:
			s.onTick()

		case <-s.ctx.Done():
			s.teardown()
			return
		}
	}
}

func (s *Server) onTick() {
	if s.deps.OnTick != nil {
		s.deps.OnTick(s.ctx, s.registry.Snapshot())
	}
}

// spawnConn starts the task that handshakes and then relays one connection.
func (s *Server) spawnConn(conn transport.Conn) {
	s.metrics.TotalConnections.Add(1)
	s.tasks.GoConn(conn.RemoteAddr(), conn, func() {
		defer func() { _ = conn.Close() }()
		user, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.relay(conn, user)
	})
}

// teardown closes every relay and empties the roster. Each Close send is
// bounded by TeardownTimeout so one wedged client cannot hold up the rest.
func (s *Server) teardown() {
	s.setState(StateClosing)
	s.registry.Seal()
	close(s.closing)
	if err := s.listener.Close(); err != nil {
		s.log.Debug("listener close", "err", err)
	}

	users := s.registry.Users()
	s.sendAll(users, protocol.New(protocol.KindClose), s.cfg.TeardownTimeout)
	s.registry.Clear()

	if forced := s.tasks.StopAfter(s.cfg.TeardownTimeout); forced > 0 {
		s.log.Warn("forced straggling connections closed", "count", forced)
	}
	s.setState(StateTerminated)
	s.log.Info("session closed", "players", len(users))
}

// sendAll queues msg for every user in parallel, each send bounded by timeout.
// It returns how many sends went through.
func (s *Server) sendAll(users []*model.User, msg protocol.Message, timeout time.Duration) int {
	delivered := make([]bool, len(users))
	var g errgroup.Group
	for i, u := range users {
		g.Go(func() error {
			delivered[i] = u.SendTimeout(msg, timeout)
			if !delivered[i] {
				s.metrics.MessagesDropped.Add(1)
				s.log.Warn("send timed out", "ip", u.IP, "message", msg.String())
			}
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range delivered {
		if ok {
			n++
		}
	}
	return n
}

func (s *Server) finish() {
	s.cancel()
	close(s.done)
}
