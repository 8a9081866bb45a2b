package server

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/NicolasHaas/gotable/pkg/model"
	"github.com/NicolasHaas/gotable/pkg/protocol"
	"github.com/NicolasHaas/gotable/pkg/transport"
)

// handshake reads the client's introduction and decides whether to admit it.
// On success the user is registered, every earlier player has been sent a
// Join and the client has its roster. Rejections never touch the registry.
func (s *Server) handshake(conn transport.Conn) (*model.User, bool) {
	ip := conn.RemoteAddr()
	log := s.log.With("remote", ip)

	// First message must be the handshake
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	data, err := conn.Recv()
	if err != nil {
		s.metrics.ProtocolErrors.Add(1)
		log.Warn("handshake read failed", "err", err)
		return nil, false
	}
	_ = conn.SetReadDeadline(time.Time{}) // clear deadline

	req, err := protocol.DecodeHandshakeRequest(data)
	if err != nil {
		s.metrics.ProtocolErrors.Add(1)
		log.Warn("bad handshake", "err", err)
		return nil, false
	}

	// Any code mismatch is answered Failed, whatever the name looks like.
	if subtle.ConstantTimeCompare([]byte(req.Code), []byte(s.cfg.Code)) != 1 {
		s.metrics.FailedHandshakes.Add(1)
		log.Info("wrong room code", "name", req.Name)
		s.reply(conn, protocol.Failed())
		return nil, false
	}

	if err := s.checkName(req); err != nil {
		s.metrics.FailedHandshakes.Add(1)
		log.Info("name rejected", "err", err)
		s.reply(conn, protocol.Failed())
		return nil, false
	}

	user := model.NewUser(ip, req.Name, s.cfg.QueueSize)
	peers, roster, err := s.registry.Admit(user, s.cfg.Capacity)
	if err != nil {
		s.metrics.RejectedFull.Add(1)
		if errors.Is(err, ErrDuplicateIP) {
			log.Warn("duplicate ip rejected", "name", req.Name)
		} else {
			log.Info("room rejected player", "name", req.Name, "reason", err)
		}
		s.reply(conn, protocol.Full())
		return nil, false
	}

	join := protocol.NewJoin(user.Info())
	for _, p := range peers {
		if !p.Offer(join) {
			s.metrics.MessagesDropped.Add(1)
		}
	}

	if !s.reply(conn, protocol.Success(roster)) {
		// Gone before it saw the roster: same as leaving.
		user.Release()
		s.leave(user)
		return nil, false
	}

	s.metrics.SuccessfulJoins.Add(1)
	log.Info("player joined", "name", user.Name, "players", len(roster))
	return user, true
}

func (s *Server) checkName(req protocol.HandshakeRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	return model.ValidateName(req.Name)
}

// reply sends a handshake response. It reports whether the write succeeded.
func (s *Server) reply(conn transport.Conn, resp protocol.HandshakeResponse) bool {
	data, err := protocol.Encode(resp)
	if err == nil {
		err = conn.Send(data)
	}
	if err != nil {
		s.log.Debug("handshake reply failed", "remote", conn.RemoteAddr(), "status", resp.Status, "err", err)
		return false
	}
	return true
}
