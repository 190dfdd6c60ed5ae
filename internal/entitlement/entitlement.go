// Package entitlement aggregates a tenant's active subscriptions into total
// resource quotas and answers whether one more unit of a resource may be
// provisioned. Every operation is a pure function of its inputs: no clock,
// no I/O, so the quota math is testable without mocks.
package entitlement

import (
	"fmt"
	"log/slog"

	"github.com/zappanel/zappanel/internal/metrics"
	"github.com/zappanel/zappanel/internal/plan"
	"github.com/zappanel/zappanel/internal/subscription"
)

// UsageSnapshot holds a tenant's live counts of provisioned resources.
// Computed by a counting collaborator; read-only here.
type UsageSnapshot struct {
	NativeInstances   int `json:"nativeInstances"`
	ExternalInstances int `json:"externalInstances"`
	InternalAgents    int `json:"internalAgents"`
	ExternalAgents    int `json:"externalAgents"`
}

// Of returns the usage count for a single resource type.
func (u UsageSnapshot) Of(r plan.Resource) int {
	switch r {
	case plan.ResourceNativeInstances:
		return u.NativeInstances
	case plan.ResourceExternalInstances:
		return u.ExternalInstances
	case plan.ResourceInternalAgents:
		return u.InternalAgents
	case plan.ResourceExternalAgents:
		return u.ExternalAgents
	}
	return 0
}

// TotalLimits is the quota sum over a tenant's active subscriptions.
// Derived on every call, never cached, so it always reflects the latest
// subscription state.
type TotalLimits struct {
	NativeInstances   int `json:"nativeInstances"`
	ExternalInstances int `json:"externalInstances"`
	InternalAgents    int `json:"internalAgents"`
	ExternalAgents    int `json:"externalAgents"`

	// Contributing lists the subscriptions that were summed: active status
	// and a plan name that resolved against the catalogue.
	Contributing []*subscription.Subscription `json:"-"`
}

// Of returns the limit for a single resource type.
func (l TotalLimits) Of(r plan.Resource) int {
	switch r {
	case plan.ResourceNativeInstances:
		return l.NativeInstances
	case plan.ResourceExternalInstances:
		return l.ExternalInstances
	case plan.ResourceInternalAgents:
		return l.InternalAgents
	case plan.ResourceExternalAgents:
		return l.ExternalAgents
	}
	return 0
}

// Result is the outcome of an entitlement check.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Calculator computes quota totals against an injected plan catalogue.
type Calculator struct {
	catalog *plan.Catalog
	logger  *slog.Logger
}

// NewCalculator creates a calculator bound to a catalogue.
func NewCalculator(catalog *plan.Catalog, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{catalog: catalog, logger: logger}
}

// AggregateLimits sums quota allotments over the active subscriptions in subs.
// Trial rows contribute nothing even though trial grants blanket feature
// access elsewhere. A subscription whose plan name no longer resolves is
// skipped: it under-grants rather than over-grants, but that silence is a
// data-integrity problem, so it is surfaced as a metric and a warning log.
func (c *Calculator) AggregateLimits(subs []*subscription.Subscription) TotalLimits {
	var limits TotalLimits
	for _, s := range subs {
		if s.Status != subscription.StatusActive {
			continue
		}
		def, err := c.catalog.ByName(s.PlanName)
		if err != nil {
			metrics.PlanNotFoundTotal.WithLabelValues(s.PlanName).Inc()
			c.logger.Warn("subscription references unknown plan, contributes zero quota",
				"subscription_id", s.ID,
				"tenant_id", s.TenantID,
				"plan_name", s.PlanName,
			)
			continue
		}
		limits.NativeInstances += def.PackAllotment.NativeInstances * s.Quantity
		limits.ExternalInstances += def.PackAllotment.ExternalInstances * s.Quantity
		limits.InternalAgents += def.PackAllotment.InternalAgents * s.Quantity
		limits.ExternalAgents += def.PackAllotment.ExternalAgents * s.Quantity
		limits.Contributing = append(limits.Contributing, s)
	}
	return limits
}

// CheckEntitlement reports whether one more unit of resource may be
// provisioned given current usage. Denials carry a human-readable reason
// naming the numeric limit.
func CheckEntitlement(limits TotalLimits, usage UsageSnapshot, resource plan.Resource) Result {
	limit := limits.Of(resource)
	if usage.Of(resource) < limit {
		return Result{Allowed: true}
	}
	return Result{
		Allowed: false,
		Reason:  fmt.Sprintf("limit of %d %s reached", limit, resourceNoun(resource, limit)),
	}
}

// UsagePercentage returns usage as a percentage of the limit per resource
// type. A zero limit maps to 0 rather than dividing by zero.
func UsagePercentage(limits TotalLimits, usage UsageSnapshot) map[plan.Resource]float64 {
	out := make(map[plan.Resource]float64, len(plan.Resources))
	for _, r := range plan.Resources {
		limit := limits.Of(r)
		if limit == 0 {
			out[r] = 0
			continue
		}
		out[r] = float64(usage.Of(r)) / float64(limit) * 100
	}
	return out
}

func resourceNoun(r plan.Resource, n int) string {
	var singular, plural string
	switch r {
	case plan.ResourceNativeInstances:
		singular, plural = "native instance", "native instances"
	case plan.ResourceExternalInstances:
		singular, plural = "external instance", "external instances"
	case plan.ResourceInternalAgents:
		singular, plural = "internal agent", "internal agents"
	case plan.ResourceExternalAgents:
		singular, plural = "external agent", "external agents"
	default:
		singular, plural = "resource", "resources"
	}
	if n == 1 {
		return singular
	}
	return plural
}
