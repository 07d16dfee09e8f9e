// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log destination and format.
type Config struct {
	Dir    string // log directory; empty logs to stderr only
	Level  string // debug, info, warn or error
	Format string // text or json
}

// Setup installs the default logger and returns a closer for the log file.
func Setup(cfg Config) io.Closer {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.Dir != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "murmur.log"),
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}

	slog.SetDefault(slog.New(NewHandler(w, cfg)))
	return closer
}

// NewHandler builds the text or JSON handler for cfg.
func NewHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
