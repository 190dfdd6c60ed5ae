package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zappanel/zappanel/internal/entitlement"
	"github.com/zappanel/zappanel/internal/idgen"
	"github.com/zappanel/zappanel/internal/instance"
	"github.com/zappanel/zappanel/internal/metrics"
	"github.com/zappanel/zappanel/internal/plan"
	"github.com/zappanel/zappanel/internal/subscription"
	"github.com/zappanel/zappanel/internal/traces"
	"github.com/zappanel/zappanel/internal/usage"
)

// Service provides agent provisioning with quota enforcement.
type Service struct {
	store     Store
	instances instance.Store
	subs      instance.SubscriptionSource
	counter   usage.Counter
	calc      *entitlement.Calculator
	logger    *slog.Logger
}

// NewService creates a new agent service.
func NewService(store Store, instances instance.Store, subs instance.SubscriptionSource, counter usage.Counter, calc *entitlement.Calculator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, instances: instances, subs: subs, counter: counter, calc: calc, logger: logger}
}

// CreateInput is the caller-supplied part of a new agent.
type CreateInput struct {
	Name       string
	Kind       Kind
	InstanceID string
	Model      string
	WebhookURL string
}

// Create provisions a new agent, enforcing the aggregated quota for the
// agent's kind. Same discipline as instance provisioning: pre-check for the
// friendly denial, conditional insert for atomicity, trial blanket access,
// fail closed on store errors.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Agent, error) {
	ctx, span := traces.StartSpan(ctx, "agent.Create",
		traces.TenantID(tenantID), traces.ResourceType(string(in.Kind.Resource())))
	defer span.End()

	if in.InstanceID != "" {
		inst, err := s.instances.Get(ctx, in.InstanceID)
		if err != nil {
			if errors.Is(err, instance.ErrNotFound) {
				return nil, fmt.Errorf("agent: instance %s not found", in.InstanceID)
			}
			return nil, fmt.Errorf("load instance: %w", err)
		}
		if inst.TenantID != tenantID {
			return nil, fmt.Errorf("agent: instance %s not found", in.InstanceID)
		}
	}

	limit, err := s.provisioningLimit(ctx, tenantID, in.Kind.Resource())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	a := &Agent{
		ID:         idgen.WithPrefix("ag_"),
		TenantID:   tenantID,
		InstanceID: in.InstanceID,
		Name:       in.Name,
		Kind:       in.Kind,
		Model:      in.Model,
		WebhookURL: in.WebhookURL,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateWithinLimit(ctx, a, limit); err != nil {
		if errors.Is(err, ErrLimitReached) {
			metrics.EntitlementDenialsTotal.WithLabelValues(string(in.Kind.Resource())).Inc()
			return nil, &entitlement.LimitError{Resource: in.Kind.Resource(), Limit: limit}
		}
		return nil, fmt.Errorf("create agent: %w", err)
	}

	metrics.ProvisionedResources.WithLabelValues(string(in.Kind.Resource())).Inc()
	return a, nil
}

func (s *Service) provisioningLimit(ctx context.Context, tenantID string, resource plan.Resource) (int, error) {
	current, err := s.subs.FindCurrent(ctx, tenantID)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		return 0, fmt.Errorf("find current subscription: %w", err)
	}
	if current != nil && current.Status == subscription.StatusTrial && !time.Now().After(current.NextDueDate) {
		return -1, nil
	}

	all, err := s.subs.ListByTenant(ctx, tenantID, time.Time{}, "", 0)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}
	limits := s.calc.AggregateLimits(all)

	snap, err := s.counter.Snapshot(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("usage snapshot: %w", err)
	}
	if res := entitlement.CheckEntitlement(limits, snap, resource); !res.Allowed {
		metrics.EntitlementDenialsTotal.WithLabelValues(string(resource)).Inc()
		return 0, &entitlement.LimitError{Resource: resource, Limit: limits.Of(resource)}
	}
	return limits.Of(resource), nil
}

// Get returns an agent by ID.
func (s *Service) Get(ctx context.Context, id string) (*Agent, error) {
	return s.store.Get(ctx, id)
}

// ListByTenant returns a tenant's agents, newest first.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]*Agent, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// Update applies caller edits to an agent.
func (s *Service) Update(ctx context.Context, a *Agent) error {
	a.UpdatedAt = time.Now()
	return s.store.Update(ctx, a)
}

// Delete removes an agent.
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.ProvisionedResources.WithLabelValues(string(a.Kind.Resource())).Dec()
	return nil
}
