package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwax12/newbotcursor/core/logger"
)

// Connect opens a Redis client and verifies connectivity with PING.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	took := time.Since(start)
	if err != nil {
		_ = client.Close()
		logger.Error(ctx, "cache", "cache.connect",
			slog.String("driver", "redis"),
			slog.String("addr", cfg.Addr),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info(ctx, "cache", "cache.connect",
		slog.String("driver", "redis"),
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
		slog.Int("pool_open", cfg.PoolSize),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return client, nil
}
