package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerAddsComponentAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, JSON: true, Component: ComponentSession, Output: &buf})

	logger.Info("dropped")
	logger.With(FieldTabID, "t1").Warn("kept", FieldCount, 2)
	logger.WithComponent(ComponentCache).Error("other component")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %s", len(lines), buf.String())
	}
	if lines[0][FieldComponent] != ComponentSession || lines[0][FieldTabID] != "t1" {
		t.Errorf("first line = %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentCache {
		t.Errorf("second line component = %v", lines[1][FieldComponent])
	}
}

func TestFromContext(t *testing.T) {
	logger := Discard().WithComponent(ComponentHTTP)
	ctx := context.WithValue(context.Background(), LoggerContextKey, logger)
	if got := FromContext(ctx); got != logger {
		t.Fatal("expected the stored logger")
	}
	if got := FromContext(context.Background()); got == nil || got.Component() != "unknown" {
		t.Fatalf("fallback logger = %+v", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, JSON: true, Component: ComponentHTTP, Output: &buf}))

	req := httptest.NewRequest("GET", "/api/transactions?type=expense", nil)
	sl.LogHTTPEnd(context.Background(), req, 503, 12, "10.0.0.1")
	sl.LogMutation(context.Background(), "transactions", OpDelete, "tx-1", errors.New("boom"))
	sl.LogMutation(context.Background(), "transactions", OpCreate, "tx-2", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0]["level"] != "ERROR" || lines[0][FieldQuery] != "type=expense" || lines[0][FieldSuccess] != false {
		t.Errorf("http line = %v", lines[0])
	}
	if lines[1]["level"] != "WARN" || lines[1][FieldError] != "boom" || lines[1][FieldRecordID] != "tx-1" {
		t.Errorf("failed mutation line = %v", lines[1])
	}
	if lines[2]["level"] != "INFO" || lines[2][FieldOperation] != OpCreate {
		t.Errorf("mutation line = %v", lines[2])
	}
	if _, ok := lines[2][FieldError]; ok {
		t.Errorf("nil error should not be logged: %v", lines[2])
	}
}
