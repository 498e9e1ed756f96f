package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/bryanwax12/newbotcursor/core/logger"
)

// DefaultPurgeInterval is how often the sweeper deletes abandoned sessions.
const DefaultPurgeInterval = time.Minute

// Sweeper periodically purges sessions idle past the TTL.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
}

// NewSweeper returns a sweeper. Non-positive values fall back to the defaults.
func NewSweeper(store Store, ttl, interval time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	return &Sweeper{store: store, ttl: ttl, interval: interval}
}

// Run blocks until ctx is cancelled, purging once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	logger.Info(ctx, logger.ComponentSessions, "sessions.sweeper.start",
		slog.Duration("interval", s.interval),
		slog.Duration("ttl", s.ttl),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, logger.ComponentSessions, "sessions.sweeper.stop")
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single purge and logs its result.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.store.PurgeExpired(ctx, s.ttl)
	if err != nil {
		logger.Warn(ctx, logger.ComponentSessions, "sessions.purge",
			slog.String("status", logger.Status(err)),
			slog.Int("purged", n),
			slog.String("err", err.Error()),
		)
		return n, err
	}
	if n > 0 {
		logger.Info(ctx, logger.ComponentSessions, "sessions.purge",
			slog.String("status", "ok"),
			slog.Int("purged", n),
			slog.Duration("took", logger.Took(start)),
		)
	}
	return n, nil
}
