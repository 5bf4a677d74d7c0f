// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package logger wraps log/slog for use inside the cache. Entry values are never passed to
// the logger; only keys, states and counts are.
package logger

import (
	"context"
	"io"
	"log/slog"
)

type Level string

const (
	Info  Level = "info"
	Err   Level = "error"
	Warn  Level = "warn"
	Debug Level = "debug"
)

// Logger writes leveled, structured log entries.
type Logger struct {
	logging *slog.Logger
}

// New creates a Logger around slogLogger. A nil slogLogger yields a Logger that discards
// everything.
func New(slogLogger *slog.Logger) *Logger {
	if slogLogger == nil {
		slogLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Logger{logging: slogLogger}
}

// With returns a Logger that adds fields to every entry.
func (a *Logger) With(fields ...any) *Logger {
	if a == nil || a.logging == nil {
		return a
	}
	return &Logger{logging: a.logging.With(fields...)}
}

// Log writes one entry. Calling Log on a nil Logger is a no-op.
func (a *Logger) Log(ctx context.Context, level Level, message string, fields ...any) {
	if a == nil || a.logging == nil {
		return
	}
	var slogLevel slog.Level
	switch level {
	case Info:
		slogLevel = slog.LevelInfo
	case Err:
		slogLevel = slog.LevelError
	case Warn:
		slogLevel = slog.LevelWarn
	case Debug:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	a.logging.Log(ctx, slogLevel, message, fields...)
}

// Field creates a slog field for any value
func Field(key string, value any) any {
	return slog.Any(key, value)
}
