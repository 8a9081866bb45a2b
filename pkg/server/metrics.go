package server

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Metrics tracks session runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime connections accepted
	ActiveConnections atomic.Int64 // admitted connections with a running relay
	TotalDisconnects  atomic.Int64 // relays that ended (close, error, kick, teardown)

	// Handshake counters
	SuccessfulJoins  atomic.Int64 // handshakes answered Success
	FailedHandshakes atomic.Int64 // handshakes answered Failed (wrong code)
	RejectedFull     atomic.Int64 // handshakes answered Full
	ProtocolErrors   atomic.Int64 // malformed handshakes or messages

	// Relay counters
	ActionsRelayed    atomic.Int64 // gameplay actions delivered to another player's queue
	ActionsThrottled  atomic.Int64 // gameplay actions dropped by the per-connection rate limit
	MessagesForwarded atomic.Int64 // messages handed to game logic
	MessagesDropped   atomic.Int64 // best-effort sends lost to a full or released queue

	// Host counters
	KickCount atomic.Int64 // players that received BeKick
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	SuccessfulJoins  int64 `json:"successful_joins"`
	FailedHandshakes int64 `json:"failed_handshakes"`
	RejectedFull     int64 `json:"rejected_full"`
	ProtocolErrors   int64 `json:"protocol_errors"`

	ActionsRelayed    int64 `json:"actions_relayed"`
	ActionsThrottled  int64 `json:"actions_throttled"`
	MessagesForwarded int64 `json:"messages_forwarded"`
	MessagesDropped   int64 `json:"messages_dropped"`

	KickCount int64 `json:"kick_count"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		SuccessfulJoins:   m.SuccessfulJoins.Load(),
		FailedHandshakes:  m.FailedHandshakes.Load(),
		RejectedFull:      m.RejectedFull.Load(),
		ProtocolErrors:    m.ProtocolErrors.Load(),
		ActionsRelayed:    m.ActionsRelayed.Load(),
		ActionsThrottled:  m.ActionsThrottled.Load(),
		MessagesForwarded: m.MessagesForwarded.Load(),
		MessagesDropped:   m.MessagesDropped.Load(),
		KickCount:         m.KickCount.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"joins", s.SuccessfulJoins,
		"actions_relayed", s.ActionsRelayed,
		"dropped", s.MessagesDropped,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
