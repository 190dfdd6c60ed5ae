package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/zappanel/zappanel/internal/syncutil"
)

// MemoryStore is an in-memory agent store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	tenantMu syncutil.ShardedMutex
}

// NewMemoryStore creates a new in-memory agent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]*Agent)}
}

func (m *MemoryStore) CreateWithinLimit(_ context.Context, a *Agent, limit int) error {
	unlock := m.tenantMu.Lock(a.TenantID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if limit >= 0 {
		count := 0
		for _, existing := range m.agents {
			if existing.TenantID == a.TenantID && existing.Kind == a.Kind {
				count++
			}
		}
		if count >= limit {
			return ErrLimitReached
		}
	}

	cp := *a
	m.agents[a.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Agent
	for _, a := range m.agents {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, a *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.agents[a.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[id]; !ok {
		return ErrNotFound
	}
	delete(m.agents, id)
	return nil
}

func (m *MemoryStore) CountByKind(_ context.Context, tenantID string) (internal, external int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.agents {
		if a.TenantID != tenantID {
			continue
		}
		switch a.Kind {
		case KindInternal:
			internal++
		case KindExternal:
			external++
		}
	}
	return internal, external, nil
}

var _ Store = (*MemoryStore)(nil)
