package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)
	SetupTo(&buf, "info", "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	FromContext(ctx).Info("hello")

	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Errorf("log output missing request_id: %s", buf.String())
	}
}

func TestContextWithLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)
	SetupTo(&buf, "debug", "text")

	ctx := ContextWithLogger(context.Background(), WithFields(context.Background(), "run_id", "abc"))
	FromContext(ctx).Debug("stored logger")

	out := buf.String()
	if !strings.Contains(out, "run_id=abc") {
		t.Errorf("stored logger fields lost: %s", out)
	}
	if !strings.Contains(out, "level=DEBUG") {
		t.Errorf("debug level not honored: %s", out)
	}
}
