// Package logging provides the structured logging helpers shared by every
// stopboard component. All helpers are thin wrappers over log/slog so that
// call sites stay uniform: operations are logged as snake_case event names,
// errors carry an "error" attribute, and long-running goroutines attach a
// "component" attribute to their logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// NewStructuredLogger returns a JSON logger writing to w at the given level.
func NewStructuredLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDevelopmentLogger returns a human readable text logger for local runs.
func NewDevelopmentLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default() when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// LogOperation records a named operation at info level.
func LogOperation(logger *slog.Logger, operation string, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, operation, attrs...)
}

// LogWarning records a degraded but expected condition.
func LogWarning(logger *slog.Logger, message string, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), slog.LevelWarn, message, attrs...)
}

// LogError records err at error level. A nil err is still logged so that
// callers can report failures that have no underlying Go error.
func LogError(logger *slog.Logger, message string, err error, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		attrs = append([]slog.Attr{slog.String("error", err.Error())}, attrs...)
	}
	logger.LogAttrs(context.Background(), slog.LevelError, message, attrs...)
}

// LogHTTPRequest records a completed HTTP request.
func LogHTTPRequest(logger *slog.Logger, method, path string, status int, durationMs float64, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	base := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
	}
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	logger.LogAttrs(context.Background(), level, "http_request", append(base, attrs...)...)
}

// SafeCloseWithLogging closes c and logs any failure instead of returning it.
// It is meant for deferred cleanup of response bodies and database handles.
func SafeCloseWithLogging(c io.Closer, logger *slog.Logger, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		LogError(logger, "failed to close resource", err, slog.String("resource", resource))
	}
}

// SetDefault installs logger as the process-wide default, falling back to a
// JSON logger on stdout when logger is nil.
func SetDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewStructuredLogger(os.Stdout, slog.LevelInfo)
	}
	slog.SetDefault(logger)
	return logger
}
