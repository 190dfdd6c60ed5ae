package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zappanel/zappanel/internal/entitlement"
	"github.com/zappanel/zappanel/internal/idgen"
	"github.com/zappanel/zappanel/internal/metrics"
	"github.com/zappanel/zappanel/internal/plan"
	"github.com/zappanel/zappanel/internal/subscription"
	"github.com/zappanel/zappanel/internal/traces"
	"github.com/zappanel/zappanel/internal/usage"
)

// SubscriptionSource is the slice of the subscription store provisioning needs.
type SubscriptionSource interface {
	FindCurrent(ctx context.Context, tenantID string) (*subscription.Subscription, error)
	ListByTenant(ctx context.Context, tenantID string, before time.Time, beforeID string, limit int) ([]*subscription.Subscription, error)
}

// Service provides instance provisioning with quota enforcement.
type Service struct {
	store   Store
	subs    SubscriptionSource
	counter usage.Counter
	calc    *entitlement.Calculator
	logger  *slog.Logger
}

// NewService creates a new instance service.
func NewService(store Store, subs SubscriptionSource, counter usage.Counter, calc *entitlement.Calculator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, subs: subs, counter: counter, calc: calc, logger: logger}
}

// CreateInput is the caller-supplied part of a new instance.
type CreateInput struct {
	Name        string
	Kind        Kind
	Phone       string
	EndpointURL string
}

// Create provisions a new instance for a tenant, enforcing the aggregated
// quota for the instance's kind. The pre-check gives the caller a numeric
// reason on denial; the store's conditional insert makes the final
// check-and-create atomic so concurrent calls cannot jointly exceed quota.
//
// An unexpired trial subscription bypasses quotas entirely: trial grants
// blanket access, matching the gate's behavior. Unlike the gate, store
// failures here fail closed: provisioning is a mutation, not a read path.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*Instance, error) {
	ctx, span := traces.StartSpan(ctx, "instance.Create",
		traces.TenantID(tenantID), traces.ResourceType(string(in.Kind.Resource())))
	defer span.End()

	limit, err := s.provisioningLimit(ctx, tenantID, in.Kind.Resource())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	status := StatusPendingQR
	if in.Kind == KindExternal {
		status = StatusDisconnected
	}
	inst := &Instance{
		ID:          idgen.WithPrefix("wi_"),
		TenantID:    tenantID,
		Name:        in.Name,
		Kind:        in.Kind,
		Phone:       in.Phone,
		EndpointURL: in.EndpointURL,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateWithinLimit(ctx, inst, limit); err != nil {
		if errors.Is(err, ErrLimitReached) {
			metrics.EntitlementDenialsTotal.WithLabelValues(string(in.Kind.Resource())).Inc()
			return nil, &entitlement.LimitError{Resource: in.Kind.Resource(), Limit: limit}
		}
		return nil, fmt.Errorf("create instance: %w", err)
	}

	metrics.ProvisionedResources.WithLabelValues(string(in.Kind.Resource())).Inc()
	return inst, nil
}

// provisioningLimit resolves the effective quota for one more unit of
// resource: -1 (unlimited) during an unexpired trial, otherwise the
// aggregated limit, after a pre-check that produces the user-facing denial.
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

// Get returns an instance by ID.
func (s *Service) Get(ctx context.Context, id string) (*Instance, error) {
	return s.store.Get(ctx, id)
}

// ListByTenant returns a tenant's instances, newest first.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]*Instance, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// UpdateStatus records a connection state change reported by the provider.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) error {
	return s.store.UpdateStatus(ctx, id, status, time.Now())
}

// Delete removes an instance.
func (s *Service) Delete(ctx context.Context, id string) error {
	inst, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.ProvisionedResources.WithLabelValues(string(inst.Kind.Resource())).Dec()
	return nil
}
