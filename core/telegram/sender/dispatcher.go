// Package sender delivers outbound Telegram calls from a fixed set of
// workers, retrying transient failures.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job's lane has no room left.
	ErrQueueFull = errors.New("telegram sender: queue full")
	errNoRun     = errors.New("telegram sender: nil run function")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the capacity of each lane.
	QueueSize int
	// Workers is the number of lanes, each served by one goroutine.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// Job is one outbound call. Jobs with the same Key run one after another
// in enqueue order; Run must be safe to repeat when retries are enabled.
type Job struct {
	Key      int64
	Action   string
	Endpoint string
	Run      func() error

	ctx context.Context
}

// Dispatcher executes jobs asynchronously on per-key lanes.
type Dispatcher struct {
	opts  Options
	lanes []chan Job
	sleep func(context.Context, time.Duration) error

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the lane workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, lanes: make([]chan Job, opts.Workers), sleep: sleepCtx}
	for i := range d.lanes {
		d.lanes[i] = make(chan Job, opts.QueueSize)
		d.wg.Add(1)
		go d.serve(d.lanes[i])
	}
	return d
}

func (d *Dispatcher) lane(key int64) chan Job {
	k := key % int64(len(d.lanes))
	if k < 0 {
		k = -k
	}
	return d.lanes[k]
}

// Enqueue schedules j without blocking.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errNoRun
	}
	if ctx == nil {
		ctx = context.Background()
	}
	j.ctx = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lane(j.Key) <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Failed returns the number of jobs that gave up.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, l := range d.lanes {
			close(l)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) serve(lane <-chan Job) {
	defer d.wg.Done()
	for j := range lane {
		d.run(j)
	}
}

func (d *Dispatcher) run(j Job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()
	start := time.Now()
	attempts := d.opts.MaxRetries + 1

	var err error
	attempt := 1
	for ; attempt <= attempts; attempt++ {
		if err = j.Run(); err == nil {
			break
		}
		wait, retry := d.backoff(err, attempt)
		if !retry || attempt == attempts {
			break
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry.backoff", jobAttrs(j,
			slog.Int("attempts", attempt),
			slog.Duration("backoff", wait),
			slog.String("reason", Classify(err)),
		)...)
		if serr := d.sleep(ctx, wait); serr != nil {
			err = errors.Join(err, serr)
			break
		}
	}
	attempt = min(attempt, attempts)

	if err == nil {
		logger.Debug(j.ctx, "tg.sender", "send.success", jobAttrs(j,
			slog.String("status", "ok"),
			slog.Int("attempts", attempt),
			slog.Duration("duration", logger.Took(start)),
		)...)
		return
	}
	d.failed.Add(1)
	logger.Error(j.ctx, "tg.sender", "send.fail", jobAttrs(j,
		slog.String("status", "fail"),
		slog.String("err", Redact(err)),
		slog.String("err_code", Classify(err)),
		slog.Int("attempts", attempt),
		slog.Duration("duration", logger.Took(start)),
	)...)
}

// backoff decides whether err is worth another attempt and how long to
// wait. Telegram flood control dictates its own delay.
func (d *Dispatcher) backoff(err error, attempt int) (time.Duration, bool) {
	if wait, ok := netutil.RetryAfter(err); ok {
		return wait, wait <= d.opts.MaxDuration
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

func jobAttrs(j Job, extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", j.Action)}
	if j.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.Endpoint))
	}
	return append(attrs, extra...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
