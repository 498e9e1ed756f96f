package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestSameKeyKeepsOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3})
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 20 {
		require.NoError(t, d.Enqueue(context.Background(), Job{Key: 7, Action: "send.text", Run: func() error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}}))
	}
	d.Close()
	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestRetriesTransientAndFlood(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var waits []time.Duration
	d.sleep = func(_ context.Context, w time.Duration) error {
		waits = append(waits, w)
		return nil
	}

	errs := []error{
		tele.FloodError{RetryAfter: 3},
		&net.OpError{Op: "dial", Err: errors.New("refused")},
		nil,
	}
	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), Job{Key: 1, Action: "send.md", Run: func() error {
		err := errs[calls]
		calls++
		return err
	}}))
	d.Close()

	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{3 * time.Second, 2 * time.Millisecond}, waits)
	assert.Zero(t, d.Failed())
}

func TestPermanentErrorFailsOnce(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3})
	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), Job{Run: func() error {
		calls++
		return errors.New("bad request")
	}}))
	d.Close()
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.Failed())
}

func TestEnqueueErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), Job{Run: func() error {
		close(started)
		<-block
		return nil
	}}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), Job{Run: func() error { return nil }}))
	assert.ErrorIs(t, d.Enqueue(context.Background(), Job{Run: func() error { return nil }}), ErrQueueFull)
	assert.Error(t, d.Enqueue(context.Background(), Job{}))

	close(block)
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), Job{Run: func() error { return nil }}), ErrQueueClosed)
}

func TestClassifyAndRedact(t *testing.T) {
	assert.Equal(t, "timeout", Classify(context.DeadlineExceeded))
	assert.Equal(t, "flood", Classify(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, "blocked", Classify(tele.ErrBlockedByUser))
	assert.Equal(t, "dial", Classify(&net.OpError{Op: "dial", Err: errors.New("x")}))
	assert.Equal(t, "unknown", Classify(errors.New("x")))

	err := errors.New(`Post "https://api.telegram.org/bot123:AAbb-cc_dd/sendMessage": EOF`)
	assert.NotContains(t, Redact(err), "AAbb")
	assert.Contains(t, Redact(err), "bot<redacted>")
}
