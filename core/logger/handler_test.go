package logger

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// emit writes one record through a fresh handler and returns the line.
func emit(t *testing.T, format logFormat, component string, level slog.Level, ctxRID string, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := Background()
	if ctxRID != "" {
		ctx = WithRID(ctx, ctxRID)
	}
	ctx = WithUpdateMeta(ctx, 42, 7, 9)
	LogEvent(ctx, slog.New(handler).With("component", component), level, event, attrs...)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	return line
}

func TestKVLeadingKeys(t *testing.T) {
	line := emit(t, formatKV, ComponentFlow, slog.LevelInfo, "rid-123", "flow.advance",
		slog.String("status", "ok"),
		slog.String("draft_id", "d-1"),
	)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=flow", "event=flow.advance", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestJSONKeyOrder(t *testing.T) {
	line := emit(t, formatJSON, ComponentOrders, slog.LevelError, "rid-json", "orders.finalize",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("draft_id", "d-9"),
	)
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	ordered := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.orders"`, `"event":"orders.finalize"`, `"status":"fail"`, `"rid":"rid-json"`, `"user_id":7`, `"draft_id":"d-9"`, `"err":"boom"`}
	pos := -1
	for _, pref := range ordered {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("%s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestOutcomeNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"advanced", "outcome=advanced"},
		{"FINALIZE_FAILED", "outcome=finalize_failed"},
		{"canceled", "outcome=cancelled"},
		{"exploded", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			line := emit(t, formatKV, ComponentFlow, slog.LevelInfo, "", "flow.advance",
				slog.String("outcome", tc.in),
			)
			if tc.want == "" {
				if strings.Contains(line, "outcome=") {
					t.Fatalf("unknown outcome should be dropped, got %s", line)
				}
				return
			}
			if !strings.Contains(line, tc.want) {
				t.Fatalf("expected %s in %s", tc.want, line)
			}
		})
	}
}

func TestCompactRID(t *testing.T) {
	raw := "123:456:789"

	kv := emit(t, formatKV, "app", slog.LevelInfo, raw, "rid.test", slog.String("status", "ok"))
	if !strings.Contains(kv, "rid="+CompactRID(raw)) {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", kv)
	}

	js := emit(t, formatJSON, "app", slog.LevelInfo, raw, "rid.test", slog.String("status", "ok"))
	if !strings.Contains(js, `"rid":"`+CompactRID(raw)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", js)
	}
	if !strings.Contains(js, `"rid_full":"`+raw+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", js)
	}
	if !strings.Contains(js, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", js)
	}
}
