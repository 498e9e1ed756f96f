package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwax12/newbotcursor/internal/steps"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// storeFactory builds a fresh store using the given clock and a 15 minute TTL.
type storeFactory func(t *testing.T, clock *fakeClock) Store

var nextUserID atomic.Int64

func init() { nextUserID.Store(time.Now().UnixNano() % 1_000_000_000) }

func newUserID() int64 { return nextUserID.Add(1) }

func advanced(s *Session, now time.Time) *Session {
	n := s.Clone()
	n.Version++
	n.LastActivityAt = now
	return n
}

func runStoreContract(t *testing.T, factory storeFactory) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		st := factory(t, newFakeClock())
		s, err := st.Load(ctx, newUserID())
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("create or get keeps the active session", func(t *testing.T) {
		clock := newFakeClock()
		st := factory(t, clock)
		uid := newUserID()

		first, err := st.CreateOrGet(ctx, New(uid, "draft-a", steps.SenderName, clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, "draft-a", first.DraftID)

		again, err := st.CreateOrGet(ctx, New(uid, "draft-b", steps.SenderName, clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, "draft-a", again.DraftID)

		loaded, err := st.Load(ctx, uid)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "draft-a", loaded.DraftID)
		assert.Equal(t, int64(0), loaded.Version)
	})

	t.Run("compare and swap", func(t *testing.T) {
		clock := newFakeClock()
		st := factory(t, clock)
		uid := newUserID()
		s, err := st.CreateOrGet(ctx, New(uid, "draft-a", steps.SenderName, clock.Now()))
		require.NoError(t, err)

		next := advanced(s, clock.Now())
		next.Fields[steps.SenderName] = Field{Value: "John Doe", Origin: OriginUser}
		next.History = []steps.ID{steps.SenderName}
		next.Cursor = steps.SenderStreet

		ok, err := st.CompareAndSwap(ctx, next, 0)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = st.CompareAndSwap(ctx, advanced(s, clock.Now()), 0)
		require.NoError(t, err)
		assert.False(t, ok, "stale expected version must not write")

		loaded, err := st.Load(ctx, uid)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, int64(1), loaded.Version)
		assert.Equal(t, steps.SenderStreet, loaded.Cursor)
		assert.Equal(t, "John Doe", loaded.Fields[steps.SenderName].Value)
		assert.Equal(t, []steps.ID{steps.SenderName}, loaded.History)

		_, err = st.CompareAndSwap(ctx, loaded.Clone(), 1)
		assert.ErrorIs(t, err, ErrVersionSkew)

		other := advanced(loaded, clock.Now())
		other.DraftID = "draft-other"
		ok, err = st.CompareAndSwap(ctx, other, 1)
		require.NoError(t, err)
		assert.False(t, ok, "a different draft must not be overwritten")
	})

	t.Run("terminal sessions are replaced", func(t *testing.T) {
		clock := newFakeClock()
		st := factory(t, clock)
		uid := newUserID()
		s, err := st.CreateOrGet(ctx, New(uid, "draft-a", steps.SenderName, clock.Now()))
		require.NoError(t, err)

		done := advanced(s, clock.Now())
		done.Cursor = steps.Cancelled
		ok, err := st.CompareAndSwap(ctx, done, 0)
		require.NoError(t, err)
		require.True(t, ok)

		loaded, err := st.Load(ctx, uid)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		fresh, err := st.CreateOrGet(ctx, New(uid, "draft-b", steps.SenderName, clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, "draft-b", fresh.DraftID)
		assert.Equal(t, int64(0), fresh.Version)
	})

	t.Run("expired sessions", func(t *testing.T) {
		clock := newFakeClock()
		st := factory(t, clock)
		uid := newUserID()
		_, err := st.CreateOrGet(ctx, New(uid, "draft-a", steps.SenderName, clock.Now()))
		require.NoError(t, err)

		clock.Advance(DefaultTTL + time.Second)
		loaded, err := st.Load(ctx, uid)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		fresh, err := st.CreateOrGet(ctx, New(uid, "draft-b", steps.SenderName, clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, "draft-b", fresh.DraftID)
	})

	t.Run("purge expired", func(t *testing.T) {
		clock := newFakeClock()
		st := factory(t, clock)
		idle, busy := newUserID(), newUserID()
		_, err := st.CreateOrGet(ctx, New(idle, "draft-idle", steps.SenderName, clock.Now()))
		require.NoError(t, err)

		clock.Advance(10 * time.Minute)
		_, err = st.CreateOrGet(ctx, New(busy, "draft-busy", steps.SenderName, clock.Now()))
		require.NoError(t, err)

		clock.Advance(6 * time.Minute)
		n, err := st.PurgeExpired(ctx, DefaultTTL)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		loaded, err := st.Load(ctx, busy)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "draft-busy", loaded.DraftID)

		loaded, err = st.Load(ctx, idle)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("concurrent swaps have one winner", func(t *testing.T) {
		clock := newFakeClock()
		st := factory(t, clock)
		uid := newUserID()
		s, err := st.CreateOrGet(ctx, New(uid, "draft-a", steps.SenderName, clock.Now()))
		require.NoError(t, err)

		const writers = 8
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := st.CompareAndSwap(ctx, advanced(s, clock.Now()), 0)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		return NewMemoryStore(WithClock(clock.Now))
	})
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		st, err := NewStore(StoreTypeRedis, WithRedisClient(client), WithClock(clock.Now))
		require.NoError(t, err)
		return st
	})
}

func TestRedisStoreKeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	st := NewRedisStore(client, WithKeyPrefix("test:"))
	_, err := st.CreateOrGet(context.Background(), New(42, "draft-a", steps.SenderName, time.Now()))
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:42"))
	assert.Equal(t, 2*DefaultTTL, mr.TTL("test:42"))
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(StoreTypePostgres)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore("etcd")
	assert.ErrorIs(t, err, ErrInvalidStoreType)

	st, err := NewStore(StoreTypeMemory)
	require.NoError(t, err)
	_, err = st.CreateOrGet(context.Background(), &Session{})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSweeperSweepOnce(t *testing.T) {
	clock := newFakeClock()
	st := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()
	_, err := st.CreateOrGet(ctx, New(1, "draft-a", steps.SenderName, clock.Now()))
	require.NoError(t, err)

	sw := NewSweeper(st, time.Minute, 0)
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Minute)
	n, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	st := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(st, time.Minute, time.Millisecond).Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
