// Package logger owns the process-wide slog logger and request-scoped
// logger propagation through context.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// L is the process-wide logger. It defaults to slog.Default until Init runs.
var L = slog.Default()

type ctxKey struct{}

// Init replaces the global logger. Level is one of debug/info/warn/error
// (case-insensitive, info on anything else); format "json" selects the
// JSON handler, anything else the text handler.
func Init(level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	L = slog.New(h)
	slog.SetDefault(L)
}

// WithContext returns a context carrying l, for handlers that want a
// request-scoped logger downstream.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext, falling back to
// the global logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return L
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
