package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/config"
)

// decodeLines parses one JSON object per written log line.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		out = append(out, m)
	}
	return out
}

func TestNewWritesServiceAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log, closer := newLogger(config.Logging{Level: "info", Service: "paddock"}, &buf)
	defer closer.Close()

	ctx := WithRequestID(context.Background(), "req-42")
	log.InfoContext(ctx, "query answered", "kind", "driver_ranking")
	log.DebugContext(ctx, "filtered out")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1 (debug is below info)", len(lines))
	}
	got := lines[0]
	for k, want := range map[string]string{
		"service":    "paddock",
		"request_id": "req-42",
		"kind":       "driver_ranking",
		"msg":        "query answered",
	} {
		if got[k] != want {
			t.Errorf("%s = %v, want %q", k, got[k], want)
		}
	}
}

func TestNewAsyncFlushesOnClose(t *testing.T) {
	var buf bytes.Buffer
	log, closer := newLogger(config.Logging{Level: "debug", Service: "paddock", Async: true}, &buf)

	ctx := WithRequestID(context.Background(), "req-async")
	for i := range 5 {
		log.DebugContext(ctx, "sweep step", "step", i)
	}
	closer.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(lines))
	}
	for _, l := range lines {
		if l["request_id"] != "req-async" {
			t.Errorf("request_id = %v", l["request_id"])
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID(empty) = %q", got)
	}
	ctx := WithRequestID(context.Background(), "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("RequestID = %q, want req-123", got)
	}
}

func TestRequestIDHandlerSkipsEmpty(t *testing.T) {
	inner := &recordingHandler{}
	h := &requestIDHandler{inner: inner}

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "no request", 0)
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	inner.records[0].Attrs(func(a slog.Attr) bool {
		if a.Key == "request_id" {
			t.Errorf("unexpected request_id %q", a.Value.String())
		}
		return true
	})
}
