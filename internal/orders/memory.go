package orders

import (
	"context"
	"maps"
	"slices"
	"sync"
)

type memoryStore struct {
	opts options

	mu       sync.Mutex
	byDraft  map[string]*Order
	balances map[int64]int64
}

// NewMemoryStore returns an in-process Store.
func NewMemoryStore(opts ...Option) Store {
	return &memoryStore{
		opts:     buildOptions(opts),
		byDraft:  make(map[string]*Order),
		balances: make(map[int64]int64),
	}
}

func (m *memoryStore) Finalize(_ context.Context, draftID string, userID int64, fields map[string]string, generated ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.byDraft[draftID]; ok {
		if o.UserID != userID {
			return "", ErrDraftOwner
		}
		return o.OrderID, nil
	}
	if err := m.opts.checkComplete(fields); err != nil {
		return "", err
	}
	price := m.opts.priceCents
	if price > 0 {
		if m.balances[userID] < price {
			return "", Reject(ReasonInsufficientBalance, ErrInsufficientBalance)
		}
		m.balances[userID] -= price
	}
	now := m.opts.now()
	o := &Order{
		OrderID:    NewOrderID(now),
		DraftID:    draftID,
		UserID:     userID,
		Fields:     maps.Clone(fields),
		Generated:  slices.Clone(generated),
		Status:     StatusCreated,
		PriceCents: price,
		CreatedAt:  now,
	}
	m.byDraft[draftID] = o
	return o.OrderID, nil
}

func (m *memoryStore) Get(_ context.Context, draftID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byDraft[draftID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *o
	c.Fields = maps.Clone(o.Fields)
	c.Generated = slices.Clone(o.Generated)
	return &c, nil
}

func (m *memoryStore) Balance(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *memoryStore) Credit(_ context.Context, userID int64, cents int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += cents
	return m.balances[userID], nil
}
