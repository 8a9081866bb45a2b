// Package logging provides configurable structured logging for gotable.
//
// Server and client both log through Go's standard log/slog. The handler is
// chosen by format: "text" and "json" use the slog handlers, "pretty" renders
// through pterm for interactive terminals.
//
// Usage:
//
//	logging.Setup(logging.Options{Level: "debug", Format: "pretty"})
//	slog.Debug("detailed trace", "key", "value")
//	slog.Info("normal operation", "key", "value")
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Options controls how logging is configured.
type Options struct {
	Level  string    // "debug", "info", "warn", "error" (default: "info")
	Format string    // "text", "json" or "pretty" (default: "text")
	Output io.Writer // where to write logs (default: os.Stdout)
}

// ParseLevel converts a string level name to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the slog handler described by opts.
func NewHandler(opts Options) (slog.Handler, error) {
	if err := Validate(opts.Level); err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := ParseLevel(opts.Level)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		}), nil
	case "pretty":
		logger := pterm.DefaultLogger.WithLevel(ptermLevel(level)).WithWriter(out)
		return pterm.NewSlogHandler(logger), nil
	case "text", "":
		return slog.NewTextHandler(out, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug, // include file:line in debug mode
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: %s)", opts.Format, FormatNames())
	}
}

// Setup initialises the global slog logger with the given options.
// Safe to call early in main() before any logging occurs.
func Setup(opts Options) error {
	handler, err := NewHandler(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case level <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case level <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

// LevelNames returns all valid level names, useful for --help text.
func LevelNames() string {
	return "debug, info, warn, error"
}

// FormatNames returns all valid format names.
func FormatNames() string {
	return "text, json, pretty"
}

// Validate returns an error if the level string is not recognized.
func Validate(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error", "":
		return nil
	default:
		return fmt.Errorf("unknown log level %q (valid: %s)", level, LevelNames())
	}
}
