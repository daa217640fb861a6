// Package logging builds the slog loggers used by the commands and adapts
// them to the Logf contract of the library packages.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures a logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output io.Writer
}

// New returns a logger for cfg. Unknown levels mean info; any format other
// than "json" means text. Output defaults to stderr so command output on
// stdout stays clean.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Adapter satisfies code.Logger on top of a slog logger.
type Adapter struct {
	l     *slog.Logger
	level slog.Level
}

// Logf adapts l. Messages are logged at debug level.
func Logf(l *slog.Logger) Adapter {
	return Adapter{l: l, level: slog.LevelDebug}
}

// At returns a copy of a that logs at level.
func (a Adapter) At(level slog.Level) Adapter {
	a.level = level
	return a
}

// Logf formats and logs one message.
func (a Adapter) Logf(format string, args ...any) {
	if a.l == nil {
		return
	}
	a.l.Log(context.Background(), a.level, fmt.Sprintf(format, args...))
}
