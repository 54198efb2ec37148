package vecfile

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithPath adds the store path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs opening or creating a store.
func (l *Logger) LogOpen(ctx context.Context, dimension int, created bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"dimension", dimension,
			"error", err,
		)
		return
	}
	if created {
		l.InfoContext(ctx, "store created", "dimension", dimension)
	} else {
		l.DebugContext(ctx, "store opened", "dimension", dimension)
	}
}

// LogAppend logs an append operation.
func (l *Logger) LogAppend(ctx context.Context, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append failed",
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "append completed",
			"bytes", bytes,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, scanned, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"scanned", scanned,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"scanned", scanned,
			"results", resultsFound,
		)
	}
}

// LogAdviseFailed logs a rejected read-ahead hint. The scan continues without it.
func (l *Logger) LogAdviseFailed(ctx context.Context, err error) {
	l.DebugContext(ctx, "read-ahead advice failed", "error", err)
}

// LogTruncatedTail logs a scan that stopped before the end of the file.
func (l *Logger) LogTruncatedTail(ctx context.Context, offset, size int64) {
	l.WarnContext(ctx, "incomplete trailing record ignored",
		"offset", offset,
		"trailing_bytes", size-offset,
	)
}
