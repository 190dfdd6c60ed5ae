package instance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zappanel/zappanel/internal/syncutil"
)

// MemoryStore is an in-memory instance store for demo/development.
// CreateWithinLimit serializes per tenant so concurrent provisioning cannot
// jointly exceed a quota.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	tenantMu  syncutil.ShardedMutex
}

// NewMemoryStore creates a new in-memory instance store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[string]*Instance)}
}

func (m *MemoryStore) CreateWithinLimit(_ context.Context, inst *Instance, limit int) error {
	unlock := m.tenantMu.Lock(inst.TenantID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if limit >= 0 {
		count := 0
		for _, i := range m.instances {
			if i.TenantID == inst.TenantID && i.Kind == inst.Kind {
				count++
			}
		}
		if count >= limit {
			return ErrLimitReached
		}
	}

	cp := *inst
	m.instances[inst.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (m *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Instance
	for _, i := range m.instances {
		if i.TenantID == tenantID {
			cp := *i
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return ErrNotFound
	}
	inst.Status = status
	inst.UpdatedAt = updatedAt
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[id]; !ok {
		return ErrNotFound
	}
	delete(m.instances, id)
	return nil
}

func (m *MemoryStore) CountByKind(_ context.Context, tenantID string) (native, external int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, i := range m.instances {
		if i.TenantID != tenantID {
			continue
		}
		switch i.Kind {
		case KindNative:
			native++
		case KindExternal:
			external++
		}
	}
	return native, external, nil
}

var _ Store = (*MemoryStore)(nil)
