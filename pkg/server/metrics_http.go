package server

import (
	"fmt"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the session ends.
//
// Disabled unless Config.MetricsAddr is set.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.log.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

func (s *Server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.State() == StateTerminated {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("terminated\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("gotable_uptime_seconds", "Session uptime in seconds.", "gauge", uptime)
	write("gotable_state", "Session state (0 waiting, 1 running, 2 closing, 3 terminated).", "gauge",
		int64(s.State()))
	write("gotable_players", "Players currently in the roster.", "gauge",
		int64(s.registry.Len()))
	locked := int64(0)
	if s.registry.Sealed() {
		locked = 1
	}
	write("gotable_room_locked", "1 once the room stops admitting players.", "gauge", locked)

	write("gotable_connections_active", "Admitted connections with a running relay.", "gauge",
		m.ActiveConnections.Load())
	write("gotable_connections_total", "Lifetime connections accepted.", "counter",
		m.TotalConnections.Load())
	write("gotable_disconnects_total", "Relays that ended.", "counter",
		m.TotalDisconnects.Load())

	write("gotable_joins_total", "Handshakes answered success.", "counter",
		m.SuccessfulJoins.Load())
	write("gotable_handshakes_failed_total", "Handshakes answered failed (wrong code).", "counter",
		m.FailedHandshakes.Load())
	write("gotable_handshakes_full_total", "Handshakes answered full.", "counter",
		m.RejectedFull.Load())
	write("gotable_protocol_errors_total", "Malformed handshakes or messages.", "counter",
		m.ProtocolErrors.Load())

	write("gotable_actions_relayed_total", "Gameplay actions delivered to other players.", "counter",
		m.ActionsRelayed.Load())
	write("gotable_actions_throttled_total", "Gameplay actions dropped by rate limiting.", "counter",
		m.ActionsThrottled.Load())
	write("gotable_messages_forwarded_total", "Messages handed to game logic.", "counter",
		m.MessagesForwarded.Load())
	write("gotable_messages_dropped_total", "Best-effort messages dropped.", "counter",
		m.MessagesDropped.Load())

	write("gotable_kicks_total", "Players kicked.", "counter",
		m.KickCount.Load())
}
