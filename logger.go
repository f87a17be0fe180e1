package blobdir

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/hupe1980/blobdir/lock"
)

// Logger wraps slog.Logger with blobdir-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogWrite logs a committed or failed write.
func (l *Logger) LogWrite(ctx context.Context, path string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"path", path,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write committed",
			"path", path,
			"size", size,
		)
	}
}

// LogRead logs a read. A missing path is expected and logged at debug level.
func (l *Logger) LogRead(ctx context.Context, path string, size int, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "read completed",
			"path", path,
			"size", size,
		)
	case errors.Is(err, ErrNotFound):
		l.DebugContext(ctx, "read miss",
			"path", path,
		)
	default:
		l.ErrorContext(ctx, "read failed",
			"path", path,
			"error", err,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete committed",
			"path", path,
		)
	}
}

// LogLock logs a lock acquisition or release. Contention is not an error.
func (l *Logger) LogLock(ctx context.Context, op, name string, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "lock "+op,
			"lock", name,
		)
	case errors.Is(err, lock.ErrWouldBlock), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		l.DebugContext(ctx, "lock "+op+" abandoned",
			"lock", name,
			"reason", err,
		)
	default:
		l.ErrorContext(ctx, "lock "+op+" failed",
			"lock", name,
			"error", err,
		)
	}
}

// LogWatcherFailure logs a watcher that returned an error or panicked.
func (l *Logger) LogWatcherFailure(ctx context.Context, ev Event, err error) {
	l.WarnContext(ctx, "watcher failed",
		"op", ev.Op.String(),
		"path", ev.Path,
		"error", err,
	)
}
