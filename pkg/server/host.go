package server

import (
	"github.com/NicolasHaas/gotable/pkg/model"
	"github.com/NicolasHaas/gotable/pkg/protocol"
)

// Roster returns the current players in join order. It never blocks on I/O.
func (s *Server) Roster() []protocol.UserInfo {
	return s.registry.Snapshot()
}

// Kick removes the player with ip: it receives BeKick and is disconnected,
// every other player receives Kick(ip) for its roster. Each send waits at
// most TeardownTimeout. A target whose queue stays full is dropped from the
// roster and has its connection closed.
func (s *Server) Kick(ip string) error {
	if s.State() >= StateClosing {
		return ErrSessionClosed
	}
	target, ok := s.registry.Get(ip)
	if !ok {
		return ErrUnknownPlayer
	}

	kick := protocol.NewKick(ip)
	var others []*model.User
	s.registry.ForEachOther(ip, func(u *model.User) { others = append(others, u) })
	delivered := s.sendAll(others, kick, s.cfg.TeardownTimeout)

	if !target.SendTimeout(kick, s.cfg.TeardownTimeout) {
		// Removing first keeps the relay's own leave from repeating the Kick.
		if _, removed := s.registry.Remove(ip); removed {
			target.Release()
			s.tasks.Stop(ip)
			s.metrics.KickCount.Add(1)
			s.log.Warn("kick target unresponsive, connection closed", "target", ip)
		}
	}
	s.log.Info("kick sent", "target", ip, "delivered", delivered)
	return nil
}

// Broadcast queues msg for every player without waiting and returns how
// many queues accepted it.
func (s *Server) Broadcast(msg protocol.Message) int {
	n := 0
	for _, u := range s.registry.Users() {
		if u.Offer(msg) {
			n++
		} else {
			s.metrics.MessagesDropped.Add(1)
		}
	}
	s.log.Debug("broadcast", "message", msg.String(), "delivered", n)
	return n
}

// Inbound returns the queue of non-action messages the player with ip sent
// toward game logic.
func (s *Server) Inbound(ip string) (<-chan protocol.Message, bool) {
	u, ok := s.registry.Get(ip)
	if !ok {
		return nil, false
	}
	return u.Inbound, true
}

// Connections returns the remote addresses of all live connection tasks,
// including ones still in their handshake.
func (s *Server) Connections() []string {
	return s.tasks.Active()
}
