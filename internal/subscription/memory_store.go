package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory subscription store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription // by ID
}

// NewMemoryStore creates a new in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Subscription)}
}

func (m *MemoryStore) Create(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) FindCurrent(_ context.Context, tenantID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var current *Subscription
	for _, s := range m.subs {
		if s.TenantID != tenantID {
			continue
		}
		if s.Status != StatusTrial && s.Status != StatusActive {
			continue
		}
		if current == nil || s.CreatedAt.After(current.CreatedAt) {
			current = s
		}
	}
	if current == nil {
		return nil, ErrNotFound
	}
	cp := *current
	return &cp, nil
}

func (m *MemoryStore) ListByTenant(_ context.Context, tenantID string, before time.Time, beforeID string, limit int) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Subscription
	for _, s := range m.subs {
		if s.TenantID == tenantID {
			cp := *s
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	var out []*Subscription
	for _, s := range all {
		if !before.IsZero() {
			if s.CreatedAt.After(before) {
				continue
			}
			if s.CreatedAt.Equal(before) && s.ID >= beforeID {
				continue
			}
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subs[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = updatedAt
	return nil
}

func (m *MemoryStore) Renew(_ context.Context, id string, nextDue, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subs[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = StatusActive
	s.NextDueDate = nextDue
	paid := paidAt
	s.PaidAt = &paid
	s.UpdatedAt = paidAt
	return nil
}

var _ Store = (*MemoryStore)(nil)
