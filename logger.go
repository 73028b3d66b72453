package fusego

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with fusego-specific context.
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

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogIndex logs a corpus indexing operation.
func (l *Logger) LogIndex(ctx context.Context, docs, cacheHits int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "indexing failed",
			"documents", docs,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "indexing completed",
			"documents", docs,
			"cache_hits", cacheHits,
			"duration", duration,
		)
	}
}

// LogSearch logs a hybrid search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, strategy string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"strategy", strategy,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"strategy", strategy,
			"results", resultsFound,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"name", name,
		)
	}
}

// LogCacheSetFailure logs a failed embedding cache write. Cache write
// failures never fail the operation, they only cost future recomputes.
func (l *Logger) LogCacheSetFailure(ctx context.Context, err error) {
	l.WarnContext(ctx, "embedding cache write failed", "error", err)
}
