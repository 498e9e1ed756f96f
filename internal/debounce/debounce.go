// Package debounce absorbs accidental double-taps and duplicate deliveries.
// It is process-local and best-effort; session versioning remains the
// correctness guarantee.
package debounce

import (
	"sync"
	"time"
)

// DefaultInterval is the suppression window.
const DefaultInterval = 300 * time.Millisecond

// pruneThreshold is the map size above which expired entries are dropped.
const pruneThreshold = 1024

type key struct {
	userID  int64
	handler string
}

type entry struct {
	at          time.Time
	fingerprint string
}

// Guard remembers the last accepted input per user and handler.
type Guard struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[key]entry
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New returns a guard with the given window. A non-positive interval
// disables suppression.
func New(interval time.Duration, opts ...Option) *Guard {
	g := &Guard{interval: interval, now: time.Now, last: make(map[key]entry)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow reports whether an input should be processed. An input is
// suppressed only when the previous accepted input from the same user on the
// same handler carried the same fingerprint and arrived within the window.
// Suppressed inputs do not extend the window.
func (g *Guard) Allow(userID int64, handler, fingerprint string) bool {
	if g == nil || g.interval <= 0 {
		return true
	}
	now := g.now()
	k := key{userID: userID, handler: handler}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[k]; ok && prev.fingerprint == fingerprint && now.Sub(prev.at) < g.interval {
		return false
	}
	g.last[k] = entry{at: now, fingerprint: fingerprint}
	if len(g.last) > pruneThreshold {
		g.prune(now)
	}
	return true
}

// Forget drops the remembered inputs of a user, e.g. after an explicit restart.
func (g *Guard) Forget(userID int64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.last {
		if k.userID == userID {
			delete(g.last, k)
		}
	}
}

// Len returns the number of tracked keys.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

func (g *Guard) prune(now time.Time) {
	for k, e := range g.last {
		if now.Sub(e.at) >= g.interval {
			delete(g.last, k)
		}
	}
}
