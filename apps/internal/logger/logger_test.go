// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestLogger_Log_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logInstance := New(slog.New(handler)).With(Field("component", "test"))

	ctx := context.Background()
	logInstance.Log(ctx, Info, "This is an info message via slog.", Field("key", "msal.app1.idtoken"))
	logInstance.Log(ctx, Err, "This is an error message via slog.", slog.Int("retry", 3))
	logInstance.Log(ctx, Warn, "This is a warn message via slog.", slog.Int("skipped", 2))
	logInstance.Log(ctx, Debug, "This is a debug message via slog.", slog.String("state", "s1"))

	output := buf.String()
	expected := []string{
		"This is an info message via slog.",
		"This is an error message via slog.",
		"This is a warn message via slog.",
		"This is a debug message via slog.",
		`"component":"test"`,
		`"key":"msal.app1.idtoken"`,
		`"level":"WARN"`,
	}
	for _, msg := range expected {
		if !bytes.Contains([]byte(output), []byte(msg)) {
			t.Errorf("expected %q not found in output", msg)
		}
	}
}

func TestLogger_New_NilLogger(t *testing.T) {
	logInstance := New(nil)
	if logInstance == nil {
		t.Fatalf("expected non-nil logInstance, got nil")
	}
	// Must not panic.
	logInstance.Log(context.Background(), Info, "dropped")

	var nilLogger *Logger
	nilLogger.Log(context.Background(), Info, "dropped")
	if nilLogger.With("a", 1) != nil {
		t.Errorf("With on a nil Logger should stay nil")
	}
}
