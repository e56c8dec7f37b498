package bloomfilter

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with filter-specific context.
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
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithName adds a filter name field to the logger.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{Logger: l.With("filter", name)}
}

// WithBitCount adds the bit count and hash function count to the logger.
func (l *Logger) WithBitCount(m, k int) *Logger {
	return &Logger{Logger: l.With("bit_count", m, "hash_functions", k)}
}

// LogParameters logs the outcome of a parameter search.
func (l *Logger) LogParameters(ctx context.Context, p Parameters, err error) {
	if err != nil {
		l.ErrorContext(ctx, "parameter search failed",
			"error_rate", p.ErrorRate,
			"capacity", p.Capacity,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "parameters derived",
		"error_rate", p.ErrorRate,
		"capacity", p.Capacity,
		"bit_count", p.BitCount,
		"hash_functions", p.HashFunctionCount,
	)
}

// LogSave logs a save operation.
func (l *Logger) LogSave(ctx context.Context, bytes int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"bytes", bytes,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "save completed",
		"bytes", bytes,
		"duration", d,
	)
}

// LogLoad logs a load operation. version is 1 for legacy streams.
func (l *Logger) LogLoad(ctx context.Context, version int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"version", version,
			"error", err,
		)
		return
	}
	if version == 1 {
		l.WarnContext(ctx, "loaded legacy header-less stream",
			"duration", d,
		)
		return
	}
	l.DebugContext(ctx, "load completed",
		"version", version,
		"duration", d,
	)
}
