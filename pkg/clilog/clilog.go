// Package clilog builds the structured logger shared by the xnav
// commands. Each command keeps its own defaults (output stream,
// fallback format, tagged attributes) and delegates the level and
// handler plumbing here.
package clilog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler a command logs through.
type Config struct {
	// Level is one of debug, info, warn, error. Unrecognized values
	// fall back to info. Debug also enables source locations.
	Level string

	// Format is json or text.
	Format string

	// Fallback is the format used when Format is neither json nor
	// text. Empty means json.
	Fallback string

	// Output defaults to os.Stdout.
	Output io.Writer
}

// New builds the logger for cfg, tagging every record with attrs.
func New(cfg Config, attrs ...any) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: strings.ToLower(cfg.Level) == "debug",
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		format = cfg.Fallback
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler).With(attrs...)
}
