package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRatio(t *testing.T) {
	cases := []struct {
		in   string
		n, m int
		ok   bool
	}{
		{"1/10", 1, 10, true},
		{" 3 / 4 ", 3, 4, true},
		{"20", 1, 20, true},
		{"0", 0, 0, true},
		{"0/5", 0, 0, true},
		{"", 0, 0, false},
		{"a/b", 0, 0, false},
	}
	for _, tc := range cases {
		n, m, ok := parseRatio(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, []int{tc.n, tc.m}, []int{n, m}, tc.in)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(2, 3)
	var got []bool
	for range 6 {
		got = append(got, s.Allow())
	}
	assert.Equal(t, []bool{true, true, false, true, true, false}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	s.Set(5, 2)
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
}

func TestSummarizeStrings(t *testing.T) {
	out, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", out)
	assert.True(t, cut)

	out, cut = SummarizeStrings([]string{"a"}, 5)
	assert.Equal(t, "a", out)
	assert.False(t, cut)

	out, cut = SummarizeStrings(nil, 0)
	assert.Empty(t, out)
	assert.False(t, cut)
}

func TestStatusAndRound(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "fail", Status(errors.New("x")))
	assert.Equal(t, time.Duration(0), RoundMS(-time.Second))
	assert.Equal(t, 2*time.Millisecond, RoundMS(1600*time.Microsecond))
}

func TestWriterRejectsAfterClose(t *testing.T) {
	w := newAsyncWriter([]io.Writer{io.Discard}, 0)
	require.NoError(t, w.Write([]byte("x\n")))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write([]byte("y\n")), errWriterClosed)
	assert.NoError(t, w.Flush())
}

func TestErrorLinesReachErrorSink(t *testing.T) {
	var main, errs bytes.Buffer
	mw := newAsyncWriter([]io.Writer{&main}, 0)
	ew := newAsyncWriter([]io.Writer{&errs}, 0)
	log := slog.New(newStructuredHandler(handlerConfig{
		level:     slog.LevelDebug,
		writer:    mw,
		errWriter: ew,
		format:    formatKV,
	}))

	ctx := WithDraft(context.Background(), "d-1")
	LogEvent(ctx, log, slog.LevelInfo, "orders.created")
	LogEvent(ctx, log, slog.LevelError, "orders.finalize", slog.String("err", "boom"))
	require.NoError(t, mw.Close())
	require.NoError(t, ew.Close())

	assert.Equal(t, 2, strings.Count(main.String(), "\n"))
	assert.Equal(t, 1, strings.Count(errs.String(), "\n"))
	assert.Contains(t, errs.String(), "event=orders.finalize")
	assert.Contains(t, errs.String(), "draft_id=d-1")
}

func TestMetaDoesNotOverrideAttrs(t *testing.T) {
	ctx := WithHandler(WithRID(context.Background(), "r"), "order_new")
	ctx = WithHandler(ctx, "")
	fields := map[string]any{"handler": "explicit"}
	MetaFrom(ctx).fields(fields)
	assert.Equal(t, "explicit", fields["handler"])
	assert.Equal(t, "r", fields["rid"])
	assert.NotContains(t, fields, "user_id")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "ab\tc\n", Sanitize("a\x00b\u200b\tc\n"))
	assert.Equal(t, "héll", SanitizeLimit("héllo", 4))
	assert.Empty(t, SanitizeLimit("x", 0))
	assert.Equal(t, "2s.5.9", CompactRID("100:5:9"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
}

func TestShutdownRestoresDiscard(t *testing.T) {
	require.NoError(t, Shutdown())
	assert.Same(t, discard, L)
	// Logging without an initialized logger must not panic.
	Info(context.Background(), ComponentFlow, "flow.idle")
}
