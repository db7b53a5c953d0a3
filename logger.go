package docvec

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with docvec-specific helpers so operations log
// with consistent field names.
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

// LogAdd logs a document add. degraded marks a write persisted without an
// embedding because the backend was unavailable.
func (l *Logger) LogAdd(ctx context.Context, id string, degraded bool, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "add failed",
			"id", id,
			"error", err,
		)
	case degraded:
		l.WarnContext(ctx, "add completed without embedding",
			"id", id,
		)
	default:
		l.DebugContext(ctx, "add completed",
			"id", id,
		)
	}
}

// LogBatchAdd logs a batch add.
func (l *Logger) LogBatchAdd(ctx context.Context, count, degraded int) {
	if degraded > 0 {
		l.WarnContext(ctx, "batch add completed with degraded entries",
			"total", count,
			"degraded", degraded,
		)
	} else {
		l.InfoContext(ctx, "batch add completed",
			"count", count,
		)
	}
}

// LogSearch logs a search.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, keywordOnly bool, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	case keywordOnly:
		l.WarnContext(ctx, "search degraded to keyword-only",
			"k", k,
			"results", resultsFound,
		)
	default:
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogRemove logs a remove.
func (l *Logger) LogRemove(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"id", id,
		)
	}
}

// LogSave logs a snapshot save.
func (l *Logger) LogSave(ctx context.Context, generation uint64, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"generation", generation,
			"records", records,
		)
	}
}

// LogLoad logs a snapshot load.
func (l *Logger) LogLoad(ctx context.Context, generation uint64, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"generation", generation,
			"records", records,
		)
	}
}
