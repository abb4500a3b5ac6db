package commons

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with commons-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithStore adds a store name field to the logger.
func (l *Logger) WithStore(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("store", name),
	}
}

// WithChunk adds a chunk name field to the logger (useful for tagging
// per-region operations).
func (l *Logger) WithChunk(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("chunk", name),
	}
}

// WithGeneration adds a commit generation field to the logger.
func (l *Logger) WithGeneration(gen uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("generation", gen),
	}
}

// LogSave logs a chunk snapshot save.
func (l *Logger) LogSave(ctx context.Context, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"chunk", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "save completed",
			"chunk", name,
			"bytes", bytes,
		)
	}
}

// LogLoad logs a chunk snapshot load.
func (l *Logger) LogLoad(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"chunk", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "load completed",
			"chunk", name,
		)
	}
}

// LogCommit logs a manifest commit.
func (l *Logger) LogCommit(ctx context.Context, generation uint64, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"generation", generation,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "commit completed",
			"generation", generation,
			"entries", entries,
		)
	}
}

// LogGrowth logs a backing array representation change.
func (l *Logger) LogGrowth(ctx context.Context, oldWidth, newWidth uint, paletteUsage int) {
	l.DebugContext(ctx, "backing array grown",
		"old_width", oldWidth,
		"new_width", newWidth,
		"palette_usage", paletteUsage,
	)
}
