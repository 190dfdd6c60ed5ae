package usage

import (
	"context"

	"github.com/zappanel/zappanel/internal/entitlement"
)

// InstanceCounts is implemented by the instance store.
type InstanceCounts interface {
	CountByKind(ctx context.Context, tenantID string) (native, external int, err error)
}

// AgentCounts is implemented by the agent store.
type AgentCounts interface {
	CountByKind(ctx context.Context, tenantID string) (internal, external int, err error)
}

// StoreCounter assembles a snapshot from the instance and agent stores.
// Used in memory mode; the Postgres deployment counts in a single query via
// PostgresCounter instead.
type StoreCounter struct {
	Instances InstanceCounts
	Agents    AgentCounts
}

func (s *StoreCounter) Snapshot(ctx context.Context, tenantID string) (entitlement.UsageSnapshot, error) {
	var snap entitlement.UsageSnapshot

	native, external, err := s.Instances.CountByKind(ctx, tenantID)
	if err != nil {
		return snap, err
	}
	snap.NativeInstances = native
	snap.ExternalInstances = external

	internal, externalAgents, err := s.Agents.CountByKind(ctx, tenantID)
	if err != nil {
		return snap, err
	}
	snap.InternalAgents = internal
	snap.ExternalAgents = externalAgents

	return snap, nil
}

var _ Counter = (*StoreCounter)(nil)
