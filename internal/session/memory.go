package session

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps sessions in process memory. It is meant for tests and
// single-instance development runs.
type memoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]*Session
}

// NewMemoryStore returns an in-memory Store.
func NewMemoryStore(opts ...StoreOption) Store {
	return newMemoryStore(buildConfig(opts))
}

func newMemoryStore(cfg *storeConfig) *memoryStore {
	return &memoryStore{
		ttl:      cfg.ttl,
		now:      cfg.now,
		sessions: make(map[int64]*Session),
	}
}

// Load implements Store.
func (m *memoryStore) Load(_ context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok || !s.Active(m.now(), m.ttl) {
		return nil, nil
	}
	return s.Clone(), nil
}

// CreateOrGet implements Store.
func (m *memoryStore) CreateOrGet(_ context.Context, fresh *Session) (*Session, error) {
	if err := checkFresh(fresh); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[fresh.UserID]; ok && s.Active(m.now(), m.ttl) {
		return s.Clone(), nil
	}
	m.sessions[fresh.UserID] = fresh.Clone()
	return fresh.Clone(), nil
}

// CompareAndSwap implements Store.
func (m *memoryStore) CompareAndSwap(_ context.Context, next *Session, expected int64) (bool, error) {
	if err := checkWrite(next, expected); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[next.UserID]
	if !ok || cur.DraftID != next.DraftID || cur.Version != expected {
		return false, nil
	}
	m.sessions[next.UserID] = next.Clone()
	return true, nil
}

// PurgeExpired implements Store.
func (m *memoryStore) PurgeExpired(_ context.Context, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, s := range m.sessions {
		if s.Expired(now, ttl) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Close implements Store.
func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[int64]*Session)
	return nil
}
