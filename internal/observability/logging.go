// Package observability provides structured logging and distributed
// tracing construction for the swarm engine and its CLI.
package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// LoggingConfig controls handler construction.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default info.
	Level string `yaml:"level" mapstructure:"level"`

	// Format is text or json. Default text.
	Format string `yaml:"format" mapstructure:"format"`
}

// NewLogger builds a structured logger writing to w. Sensitive attribute
// values (API keys, prompts, tokens) are redacted at the handler level so
// no call site can leak them by accident.
func NewLogger(w io.Writer, cfg LoggingConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(redactingHandler{inner: handler})
}

// ParseLevel maps a config string to a slog level. Unknown values fall
// back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// sensitiveKeys are attribute names whose values never reach log output.
// Key names are compared with underscores stripped, so api_key and apikey
// both match.
var sensitiveKeys = map[string]bool{
	"prompt":       true,
	"prompts":      true,
	"systemprompt": true,
	"apikey":       true,
	"secret":       true,
	"secretkey":    true,
	"password":     true,
	"token":        true,
	"credential":   true,
}

// redactingHandler replaces sensitive attribute values with a placeholder
// before delegating to the wrapped handler.
type redactingHandler struct {
	inner slog.Handler
}

func (h redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return redactingHandler{inner: h.inner.WithAttrs(redacted)}
}

func (h redactingHandler) WithGroup(name string) slog.Handler {
	return redactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(strings.ReplaceAll(a.Key, "_", ""))
	if sensitiveKeys[key] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
