package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidConfig is returned when a backend is requested without its client.
	ErrInvalidConfig = errors.New("session: invalid store configuration")
	// ErrInvalidStoreType is returned for an unknown backend name.
	ErrInvalidStoreType = errors.New("session: invalid store type")
	// ErrVersionSkew is returned when a write does not advance the version by exactly one.
	ErrVersionSkew = errors.New("session: new version must be expected+1")
	// ErrInvalidSession is returned for a session without user or draft id.
	ErrInvalidSession = errors.New("session: user id and draft id are required")
)

// Store persists at most one active session per user.
//
// Implementations must make CreateOrGet and CompareAndSwap atomic with respect
// to each other; PurgeExpired may run concurrently with both.
type Store interface {
	// Load returns the active session of the user or nil when there is none.
	// Terminal and expired sessions are never returned.
	Load(ctx context.Context, userID int64) (*Session, error)

	// CreateOrGet returns the user's active session, or stores fresh and
	// returns it when there is none. Callers tell both apart by DraftID.
	CreateOrGet(ctx context.Context, fresh *Session) (*Session, error)

	// CompareAndSwap writes next only if the stored session has the same
	// draft id and version == expected. It reports false without writing
	// otherwise. next.Version must be expected+1.
	CompareAndSwap(ctx context.Context, next *Session, expected int64) (bool, error)

	// PurgeExpired deletes sessions idle for longer than ttl and returns how many.
	PurgeExpired(ctx context.Context, ttl time.Duration) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// StoreType names a storage backend.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypePostgres StoreType = "postgres"
	StoreTypeRedis    StoreType = "redis"
)

// DefaultTTL is the inactivity window after which a session is abandoned.
const DefaultTTL = 15 * time.Minute

// StoreOption configures a store built by NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	ttl         time.Duration
	now         func() time.Time
	db          *sqlx.DB
	redisClient *redis.Client
	keyPrefix   string
}

// WithTTL sets the inactivity window used by Load and CreateOrGet.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) { c.now = now }
}

// WithDB sets the database handle for the Postgres store.
func WithDB(db *sqlx.DB) StoreOption {
	return func(c *storeConfig) { c.db = db }
}

// WithRedisClient sets the client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) { c.keyPrefix = prefix }
}

func buildConfig(opts []StoreOption) *storeConfig {
	cfg := &storeConfig{ttl: DefaultTTL, now: time.Now, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return cfg
}

// NewStore builds the backend named by storeType.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := buildConfig(opts)
	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(cfg), nil
	case StoreTypePostgres:
		if cfg.db == nil {
			return nil, fmt.Errorf("%w: postgres store needs a database handle", ErrInvalidConfig)
		}
		return newPostgresStore(cfg), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis store needs a client", ErrInvalidConfig)
		}
		return newRedisStore(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, storeType)
	}
}

func checkWrite(next *Session, expected int64) error {
	if next == nil || next.UserID == 0 || next.DraftID == "" {
		return ErrInvalidSession
	}
	if next.Version != expected+1 {
		return fmt.Errorf("%w: got %d, expected %d", ErrVersionSkew, next.Version, expected+1)
	}
	return nil
}

func checkFresh(fresh *Session) error {
	if fresh == nil || fresh.UserID == 0 || fresh.DraftID == "" {
		return ErrInvalidSession
	}
	return nil
}
