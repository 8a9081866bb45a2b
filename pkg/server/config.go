package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the room descriptor and session tuning.
// BindAddr and Code are fixed for the life of a session.
type Config struct {
	BindAddr  string `yaml:"bind_addr"` // listen address (e.g. "127.0.0.1:3000")
	Code      string `yaml:"code"`      // room code clients must present
	Capacity  int    `yaml:"capacity"`  // maximum number of players
	Transport string `yaml:"transport"` // "tcp" or "ws"
	WSPath    string `yaml:"ws_path"`   // upgrade path when Transport is "ws"

	QueueSize        int           `yaml:"queue_size"`        // per-user outbound/inbound queue capacity
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // how long a new connection may take to introduce itself
	TeardownTimeout  time.Duration `yaml:"teardown_timeout"`  // bound on each close/kick send and on relay drain
	TickInterval     time.Duration `yaml:"tick_interval"`     // bookkeeping tick while Running

	ActionRate  float64 `yaml:"action_rate"`  // gameplay actions per second per connection (0 = unlimited)
	ActionBurst int     `yaml:"action_burst"` // burst allowance for ActionRate

	MetricsAddr        string        `yaml:"metrics_addr"`         // HTTP bind address for /metrics (empty = disabled)
	MetricsLogInterval time.Duration `yaml:"metrics_log_interval"` // periodic metrics log (0 = disabled)
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BindAddr:         "127.0.0.1:3000",
		Code:             "TEST",
		Capacity:         6,
		Transport:        "tcp",
		WSPath:           "/ws",
		QueueSize:        50,
		HandshakeTimeout: 10 * time.Second,
		TeardownTimeout:  500 * time.Millisecond,
		TickInterval:     time.Second,
		ActionRate:       20,
		ActionBurst:      10,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.BindAddr == "":
		return errors.New("config: bind_addr is required")
	case c.Code == "":
		return errors.New("config: code is required")
	case c.Capacity < 1:
		return fmt.Errorf("config: capacity must be at least 1, got %d", c.Capacity)
	case c.Transport != "tcp" && c.Transport != "ws":
		return fmt.Errorf("config: unknown transport %q (valid: tcp, ws)", c.Transport)
	case c.QueueSize < 1:
		return fmt.Errorf("config: queue_size must be at least 1, got %d", c.QueueSize)
	case c.HandshakeTimeout <= 0 || c.TeardownTimeout <= 0 || c.TickInterval <= 0:
		return errors.New("config: timeouts and tick_interval must be positive")
	case c.ActionRate < 0:
		return errors.New("config: action_rate must not be negative")
	case c.ActionRate > 0 && c.ActionBurst < 1:
		return errors.New("config: action_burst must be at least 1 when action_rate is set")
	}
	return nil
}

// LoadConfigYAML reads a YAML file and overlays it onto cfg.
func LoadConfigYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return ParseConfigYAML(data, cfg)
}

// ParseConfigYAML overlays YAML data onto cfg. Keys absent from data keep their current value.
func ParseConfigYAML(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
