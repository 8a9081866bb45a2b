package server

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/NicolasHaas/gotable/pkg/model"
	"github.com/NicolasHaas/gotable/pkg/protocol"
	"github.com/NicolasHaas/gotable/pkg/transport"
)

type recvResult struct {
	data []byte
	err  error
}

// relay runs for the lifetime of one admitted connection. It multiplexes
// frames read from the client with messages queued for it by other players
// or the host; neither side can starve the other.
func (s *Server) relay(conn transport.Conn, user *model.User) {
	log := s.log.With("ip", user.IP, "name", user.Name)
	s.metrics.ActiveConnections.Add(1)
	defer func() {
		user.Release()
		s.registry.Remove(user.IP) // no-op if already removed
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.TotalDisconnects.Add(1)
		log.Info("player disconnected")
	}()

	reads := make(chan recvResult)
	quit := make(chan struct{})
	defer close(quit)
	s.tasks.Go(func() { readLoop(conn, reads, quit) })

	var limiter *rate.Limiter
	if s.cfg.ActionRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.ActionRate), s.cfg.ActionBurst)
	}

	for {
		select {
		case r := <-reads:
			if r.err != nil {
				log.Debug("read ended, treating as close", "err", r.err)
				s.leave(user)
				return
			}
			msg, err := protocol.DecodeMessage(r.data)
			if err != nil {
				s.metrics.ProtocolErrors.Add(1)
				log.Warn("bad message, dropping connection", "err", err)
				s.leave(user)
				return
			}
			if s.fromClient(user, msg, limiter, log) {
				return
			}

		case msg := <-user.Outbound:
			if s.toClient(conn, user, msg, log) {
				return
			}
		}
	}
}

// readLoop pumps frames from conn until it fails or quit is closed.
func readLoop(conn transport.Conn, reads chan<- recvResult, quit <-chan struct{}) {
	for {
		data, err := conn.Recv()
		select {
		case reads <- recvResult{data: data, err: err}:
		case <-quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// fromClient handles one message read from the client. It reports whether the relay should stop.
func (s *Server) fromClient(user *model.User, msg protocol.Message, limiter *rate.Limiter, log *slog.Logger) bool {
	switch {
	case msg.Kind == protocol.KindClose:
		log.Debug("client closed")
		s.leave(user)
		return true

	case msg.Kind.IsAction():
		if limiter != nil && !limiter.Allow() {
			s.metrics.ActionsThrottled.Add(1)
			log.Debug("action throttled", "message", msg.String())
			return false
		}
		s.registry.ForEachOther(user.IP, func(peer *model.User) {
			if peer.Offer(msg) {
				s.metrics.ActionsRelayed.Add(1)
			} else {
				s.metrics.MessagesDropped.Add(1)
			}
		})
		return false

	default:
		if user.Forward(msg) {
			s.metrics.MessagesForwarded.Add(1)
		} else {
			s.metrics.MessagesDropped.Add(1)
			log.Debug("inbound queue full", "message", msg.String())
		}
		return false
	}
}

// toClient handles one message queued for the client. It reports whether the relay should stop.
func (s *Server) toClient(conn transport.Conn, user *model.User, msg protocol.Message, log *slog.Logger) bool {
	switch {
	case msg.Kind == protocol.KindClose:
		return true

	case msg.Kind == protocol.KindKick && msg.IP == user.IP:
		s.metrics.KickCount.Add(1)
		if err := send(conn, protocol.New(protocol.KindBeKick)); err != nil {
			log.Debug("be_kick write failed", "err", err)
		}
		log.Info("player kicked")
		return true
	}

	if err := send(conn, msg); err != nil {
		log.Debug("write failed, treating as close", "err", err)
		s.leave(user)
		return true
	}
	return false
}

// leave removes user from the roster and tells everyone else it is gone.
// Only the first caller for a user broadcasts the Kick.
func (s *Server) leave(user *model.User) {
	if _, ok := s.registry.Remove(user.IP); !ok {
		return
	}
	kick := protocol.NewKick(user.IP)
	for _, peer := range s.registry.Users() {
		if !peer.Offer(kick) {
			s.metrics.MessagesDropped.Add(1)
		}
	}
}

func send(conn transport.Conn, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return conn.Send(data)
}
