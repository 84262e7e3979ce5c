// Package logging provides the engine's internal diagnostic logger. It is
// entirely separate from the protocol stream on stdout, which carries
// command responses and Info/Error protocol records alike (spec §6);
// this logger writes structured, rotated records for operators debugging
// the engine process itself, the way the corpus's internal/logging
// package scopes component loggers over a rotating lumberjack writer.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names used as the "component" attribute on every record.
const (
	CompSession  = "session"
	CompWatcher  = "watcher"
	CompQuery    = "query"
	CompProtocol = "protocol"
	CompEncoding = "encoding"
)

// Config controls where and how verbosely the engine logs.
type Config struct {
	// Dir is the directory holding engine.log. Empty means discard.
	Dir string
	// Level is "debug", "info", "warn", or "error".
	Level string
	// MaxSizeMB is the rotation threshold in megabytes.
	MaxSizeMB int
	// MaxBackups is how many rotated files to keep.
	MaxBackups int
	// MaxAgeDays is how many days to keep rotated files.
	MaxAgeDays int
}

var (
	mu          sync.RWMutex
	base        *slog.Logger
	lumberjackW *lumberjack.Logger
)

// Init sets up the global logger. Safe to call once at process start;
// subsequent calls replace the previous configuration.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 10
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.Dir == "" {
		base = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		base = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return
	}

	lumberjackW = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "engine.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	base = slog.New(slog.NewJSONHandler(lumberjackW, &slog.HandlerOptions{Level: level}))
}

// Logger returns the global logger, defaulting to a discard handler if
// Init has not been called yet (e.g. in tests).
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return base
}

// ForComponent returns a sub-logger tagged with a "component" attribute.
// Implemented as a thin dynamic wrapper so loggers captured as package
// vars before Init runs still pick up the real handler afterward.
func ForComponent(name string) *slog.Logger {
	return slog.New(&dynamicHandler{component: name})
}

type dynamicHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	copy(merged[len(h.attrs):], attrs)
	return &dynamicHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	return &dynamicHandler{component: h.component, attrs: h.attrs, group: name}
}

// Shutdown flushes and closes the rotating writer.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if lumberjackW != nil {
		lumberjackW.Close()
		lumberjackW = nil
	}
	base = nil
}
