// Package logger provides the application's slog-based structured logger.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the shared *slog.Logger.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger creates a logger configured from LOG_LEVEL and GO_ENV.
// Production (GO_ENV=production) uses JSON output, everything else text.
// Unknown or missing LOG_LEVEL defaults to info.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "info":
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Scope returns a "scope" attribute identifying the subsystem a log line
// originates from (e.g. "loaders.batch", "graph.repo").
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns an "error" attribute for the given error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
