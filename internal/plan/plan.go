// Package plan defines the catalogue of sellable subscription plans.
package plan

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a plan key or display name resolves to nothing.
var ErrNotFound = errors.New("plan: not found")

// Resource identifies a quota-constrained resource type.
type Resource string

const (
	ResourceNativeInstances   Resource = "native_instances"
	ResourceExternalInstances Resource = "external_instances"
	ResourceInternalAgents    Resource = "internal_agents"
	ResourceExternalAgents    Resource = "external_agents"
)

// Resources lists all quota-constrained resource types.
var Resources = []Resource{
	ResourceNativeInstances,
	ResourceExternalInstances,
	ResourceInternalAgents,
	ResourceExternalAgents,
}

// Valid returns true if r is a known resource type.
func (r Resource) Valid() bool {
	switch r {
	case ResourceNativeInstances, ResourceExternalInstances,
		ResourceInternalAgents, ResourceExternalAgents:
		return true
	}
	return false
}

// Cycle is a billing cycle.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// Allotment holds the per-pack resource units a plan grants.
type Allotment struct {
	NativeInstances   int `json:"nativeInstances"`
	ExternalInstances int `json:"externalInstances"`
	InternalAgents    int `json:"internalAgents"`
	ExternalAgents    int `json:"externalAgents"`
}

// Of returns the allotment for a single resource type.
func (a Allotment) Of(r Resource) int {
	switch r {
	case ResourceNativeInstances:
		return a.NativeInstances
	case ResourceExternalInstances:
		return a.ExternalInstances
	case ResourceInternalAgents:
		return a.InternalAgents
	case ResourceExternalAgents:
		return a.ExternalAgents
	}
	return 0
}

// Definition is a sellable plan. Definitions are immutable once the catalogue
// is built; a subscription references one by display name, not by key.
type Definition struct {
	Key           string    `json:"key"`
	DisplayName   string    `json:"displayName"`
	PriceCents    int64     `json:"priceCents"` // per pack, per cycle
	BillingCycle  Cycle     `json:"billingCycle"`
	PackAllotment Allotment `json:"packAllotment"`
	Features      []string  `json:"features,omitempty"`
}

// Catalog is an immutable lookup of plan definitions. It is built once at
// startup and injected into whatever needs it; nothing reaches for a package
// global, so tests can substitute alternate catalogues.
type Catalog struct {
	byKey  map[string]Definition
	byName map[string]Definition // lowercased display name
	keys   []string              // insertion order, for stable listing
}

// NewCatalog builds a catalogue from the given definitions.
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{
		byKey:  make(map[string]Definition, len(defs)),
		byName: make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		c.byKey[d.Key] = d
		c.byName[strings.ToLower(d.DisplayName)] = d
		c.keys = append(c.keys, d.Key)
	}
	return c
}

// ByKey looks up a plan by its key.
func (c *Catalog) ByKey(key string) (Definition, error) {
	d, ok := c.byKey[key]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return d, nil
}

// ByName looks up a plan by display name, case-insensitively.
// Subscriptions store the display name as free text, so a renamed plan
// stops resolving here; callers decide how loudly to complain.
func (c *Catalog) ByName(name string) (Definition, error) {
	d, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return d, nil
}

// TotalPrice returns the price of quantity packs of a plan, in cents.
func (c *Catalog) TotalPrice(key string, quantity int) (int64, error) {
	d, ok := c.byKey[key]
	if !ok {
		return 0, ErrNotFound
	}
	return d.PriceCents * int64(quantity), nil
}

// List returns all definitions in registration order.
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.byKey[k])
	}
	return out
}

// Default returns the production catalogue.
func Default() *Catalog {
	return NewCatalog(
		Definition{
			Key:          "starter",
			DisplayName:  "Starter",
			PriceCents:   4990,
			BillingCycle: CycleMonthly,
			PackAllotment: Allotment{
				NativeInstances:   2,
				ExternalInstances: 1,
				InternalAgents:    2,
				ExternalAgents:    1,
			},
			Features: []string{"qr_provisioning"},
		},
		Definition{
			Key:          "pro",
			DisplayName:  "Pro",
			PriceCents:   9990,
			BillingCycle: CycleMonthly,
			PackAllotment: Allotment{
				NativeInstances:   5,
				ExternalInstances: 3,
				InternalAgents:    5,
				ExternalAgents:    3,
			},
			Features: []string{"qr_provisioning", "webhooks"},
		},
		Definition{
			Key:          "business",
			DisplayName:  "Business",
			PriceCents:   24990,
			BillingCycle: CycleMonthly,
			PackAllotment: Allotment{
				NativeInstances:   15,
				ExternalInstances: 10,
				InternalAgents:    15,
				ExternalAgents:    10,
			},
			Features: []string{"qr_provisioning", "webhooks", "priority_support"},
		},
	)
}
