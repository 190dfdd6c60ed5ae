// Package agent manages a tenant's conversational agents. Internal agents
// run on the bundled model stack and answer on an instance directly; external
// agents forward conversations to a customer webhook.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/zappanel/zappanel/internal/plan"
)

// Errors
var (
	ErrNotFound     = errors.New("agent: not found")
	ErrLimitReached = errors.New("agent: tenant at quota for this agent kind")
)

// Kind distinguishes hosted from webhook-driven agents.
type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"
)

// Resource maps an agent kind to its quota resource type.
func (k Kind) Resource() plan.Resource {
	if k == KindExternal {
		return plan.ResourceExternalAgents
	}
	return plan.ResourceInternalAgents
}

// Agent is a conversational responder bound to a tenant, optionally pinned
// to one instance.
type Agent struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	InstanceID string    `json:"instanceId,omitempty"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Model      string    `json:"model,omitempty"`      // internal agents only
	WebhookURL string    `json:"webhookUrl,omitempty"` // external agents only
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store persists agents.
type Store interface {
	// CreateWithinLimit inserts the agent only if the tenant currently has
	// fewer than limit agents of the same kind, as one atomic operation.
	// Returns ErrLimitReached at or over the limit; negative means unlimited.
	CreateWithinLimit(ctx context.Context, a *Agent, limit int) error
	Get(ctx context.Context, id string) (*Agent, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Agent, error)
	Update(ctx context.Context, a *Agent) error
	Delete(ctx context.Context, id string) error
	CountByKind(ctx context.Context, tenantID string) (internal, external int, err error)
}
