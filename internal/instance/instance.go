// Package instance manages a tenant's WhatsApp instances. Native instances
// are provisioned on the bundled provider and paired via QR; external
// instances wrap a customer-supplied provider endpoint.
package instance

import (
	"context"
	"errors"
	"time"

	"github.com/zappanel/zappanel/internal/plan"
)

// Errors
var (
	ErrNotFound     = errors.New("instance: not found")
	ErrLimitReached = errors.New("instance: tenant at quota for this instance kind")
)

// Kind distinguishes provider-managed from customer-supplied instances.
type Kind string

const (
	KindNative   Kind = "native"
	KindExternal Kind = "external"
)

// Resource maps an instance kind to its quota resource type.
func (k Kind) Resource() plan.Resource {
	if k == KindExternal {
		return plan.ResourceExternalInstances
	}
	return plan.ResourceNativeInstances
}

// Status is the connection state of an instance.
type Status string

const (
	StatusPendingQR    Status = "pending_qr"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Instance is a WhatsApp connection owned by a tenant.
type Instance struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	Phone       string    `json:"phone,omitempty"`
	EndpointURL string    `json:"endpointUrl,omitempty"` // external instances only
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists instances.
type Store interface {
	// CreateWithinLimit inserts the instance only if the tenant currently has
	// fewer than limit instances of the same kind, as one atomic operation.
	// Returns ErrLimitReached when the tenant is at or over the limit.
	// A negative limit means unlimited.
	CreateWithinLimit(ctx context.Context, inst *Instance, limit int) error
	Get(ctx context.Context, id string) (*Instance, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Instance, error)
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	CountByKind(ctx context.Context, tenantID string) (native, external int, err error)
}
