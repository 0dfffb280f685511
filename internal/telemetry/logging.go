// Package telemetry wires structured logging, metrics, and tracing for the
// service, using log/slog and the real OpenTelemetry SDK directly, since
// this service has one process and one exporter target rather than a
// pluggable multi-backend requirement.
package telemetry

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger: JSON in production,
// human-readable otherwise. Credentials are never passed to logger calls by
// convention (callers pass field names, never raw config structs); raw
// event payloads are logged only at debug level by the callers that hold
// them (collectors, rule engine).
//
// level is typically a *slog.LevelVar rather than a bare slog.Level, so a
// config watcher can lower or raise verbosity after this logger has already
// been handed out to every component.
func NewLogger(env string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps the config-file log level string to a slog.Level,
// defaulting to Info on an unrecognized value.
func ParseLevel(s string) slog.Level {
	switch s {
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
