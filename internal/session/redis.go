package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwax12/newbotcursor/internal/steps"
)

const defaultKeyPrefix = "order_session:"

// createAttempts bounds WATCH retries in CreateOrGet.
const createAttempts = 5

// redisStore keeps one JSON document per user under <prefix><user id>.
// Writes use WATCH/MULTI/EXEC so a concurrent write to the same key aborts
// the transaction instead of being overwritten.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	prefix string
}

// NewRedisStore returns a Store backed by Redis.
func NewRedisStore(client *redis.Client, opts ...StoreOption) Store {
	cfg := buildConfig(append([]StoreOption{WithRedisClient(client)}, opts...))
	return newRedisStore(cfg)
}

func newRedisStore(cfg *storeConfig) *redisStore {
	return &redisStore{client: cfg.redisClient, ttl: cfg.ttl, now: cfg.now, prefix: cfg.keyPrefix}
}

func (r *redisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// expiry is the key lifetime. Keys outlive the session TTL a little so Load
// decides expiry from last_activity_at rather than racing the key eviction.
func (r *redisStore) expiry() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	return 2 * r.ttl
}

func decodeSession(raw string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Fields == nil {
		s.Fields = make(map[steps.ID]Field)
	}
	return &s, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *redisStore) get(ctx context.Context, c getter, key string) (*Session, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

// Load implements Store.
func (r *redisStore) Load(ctx context.Context, userID int64) (*Session, error) {
	s, err := r.get(ctx, r.client, r.key(userID))
	if err != nil || s == nil {
		return nil, err
	}
	if !s.Active(r.now(), r.ttl) {
		return nil, nil
	}
	return s, nil
}

// CreateOrGet implements Store.
func (r *redisStore) CreateOrGet(ctx context.Context, fresh *Session) (*Session, error) {
	if err := checkFresh(fresh); err != nil {
		return nil, err
	}
	val, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	key := r.key(fresh.UserID)

	for attempt := 0; attempt < createAttempts; attempt++ {
		var out *Session
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := r.get(ctx, tx, key)
			if err != nil {
				return err
			}
			if cur != nil && cur.Active(r.now(), r.ttl) {
				out = cur
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, val, r.expiry())
				return nil
			})
			if err == nil {
				out = fresh.Clone()
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("create session: too much contention on %s", key)
}

// CompareAndSwap implements Store.
func (r *redisStore) CompareAndSwap(ctx context.Context, next *Session, expected int64) (bool, error) {
	if err := checkWrite(next, expected); err != nil {
		return false, err
	}
	val, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	key := r.key(next.UserID)

	swapped := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur == nil || cur.DraftID != next.DraftID || cur.Version != expected {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, val, r.expiry())
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// PurgeExpired implements Store. Each candidate key is re-read under WATCH so
// a session touched during the scan survives.
func (r *redisStore) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	purged := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := r.get(ctx, tx, key)
			if err != nil || cur == nil || !cur.Expired(r.now(), ttl) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err == nil {
				purged++
			}
			return err
		}, key)
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return purged, fmt.Errorf("purge %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("scan sessions: %w", err)
	}
	return purged, nil
}

// Close implements Store. The client is owned by the caller.
func (r *redisStore) Close() error { return nil }
