package templates

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu   sync.Mutex
	byID map[string]*Template
}

// NewMemoryRepository returns an in-process Repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]*Template)}
}

func clone(t *Template) *Template {
	c := *t
	c.Fields = maps.Clone(t.Fields)
	return &c
}

func (m *memoryRepository) nameTaken(ownerID int64, name, exceptID string) bool {
	for _, t := range m.byID {
		if t.OwnerID == ownerID && t.Name == name && t.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memoryRepository) Create(_ context.Context, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(t.OwnerID, t.Name, "") {
		return ErrNameTaken
	}
	m.byID[t.ID] = clone(t)
	return nil
}

func (m *memoryRepository) Get(_ context.Context, id string) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

func (m *memoryRepository) ListByOwner(_ context.Context, ownerID int64) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Template
	for _, t := range m.byID {
		if t.OwnerID == ownerID {
			out = append(out, *clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryRepository) CountByOwner(_ context.Context, ownerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.byID {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepository) Rename(_ context.Context, id, name string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if m.nameTaken(t.OwnerID, name, id) {
		return ErrNameTaken
	}
	t.Name = name
	t.UpdatedAt = now
	return nil
}

func (m *memoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}
