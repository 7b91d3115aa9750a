// Package log builds the structured slog loggers used across procvisor.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format represents the log output format.
type Format string

const (
	// FormatAuto selects text for terminals and JSON otherwise.
	FormatAuto Format = "auto"
	// FormatJSON outputs logs in JSON format for machine parsing.
	FormatJSON Format = "json"
	// FormatText outputs logs in human-readable text format.
	FormatText Format = "text"
)

// Standard field keys shared by every supervisor log record.
const (
	ProcessKey   = "process"
	ProcessIDKey = "process_id"
	ActionKey    = "action"
	CommandKey   = "command"
	EnvKey       = "env"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error).
	Level string
	// Format sets the output format (auto, json, text).
	Format Format
	// Output is the writer for log output. Default: os.Stderr
	Output io.Writer
	// AddSource adds source file and line information to logs.
	AddSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatAuto,
		Output: os.Stderr,
	}
}

// FromEnv creates a Config from environment variables.
// Supported environment variables:
//   - PROCVISOR_LOG_LEVEL: debug, info, warn, error (default: info)
//   - PROCVISOR_LOG_FORMAT: auto, json, text (default: auto)
//   - PROCVISOR_LOG_SOURCE: 1 to enable source file/line
func FromEnv() *Config {
	cfg := DefaultConfig()
	if level := os.Getenv("PROCVISOR_LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("PROCVISOR_LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}
	if os.Getenv("PROCVISOR_LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}
	return cfg
}

// Validate reports unknown levels or formats.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", FormatAuto, FormatJSON, FormatText:
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want auto, json or text)", c.Format)
	}
}

// New creates a structured logger from the given configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch resolveFormat(cfg.Format, out) {
	case FormatText:
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func resolveFormat(format Format, out io.Writer) Format {
	if format != FormatAuto && format != "" {
		return format
	}
	if f, ok := out.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// ParseLevel converts a string level to slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// WithProcess returns a logger carrying the process correlation fields.
func WithProcess(logger *slog.Logger, name, id string) *slog.Logger {
	return logger.With(slog.String(ProcessKey, name), slog.String(ProcessIDKey, id))
}
