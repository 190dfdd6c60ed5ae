// Package usage counts a tenant's currently provisioned resources.
// It is the read-only input to entitlement checks; the numbers come straight
// from the instance and agent tables, never from a cache.
package usage

import (
	"context"

	"github.com/zappanel/zappanel/internal/entitlement"
)

// Counter produces a live usage snapshot for a tenant.
type Counter interface {
	Snapshot(ctx context.Context, tenantID string) (entitlement.UsageSnapshot, error)
}
