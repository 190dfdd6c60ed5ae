package gate

import (
	"context"
	"errors"
	"net/http"

	"github.com/zappanel/zappanel/internal/auth"
)

// SessionResolver adapts the auth manager to the gate's identity contract.
type SessionResolver struct {
	mgr *auth.Manager
}

// NewSessionResolver creates an identity resolver backed by the auth manager.
func NewSessionResolver(m *auth.Manager) *SessionResolver {
	return &SessionResolver{mgr: m}
}

// ResolveIdentity returns the caller's identity, nil for unauthenticated
// requests, or an error when the session store itself failed (so the gate can
// fail open instead of bouncing everyone to login during an outage).
func (r *SessionResolver) ResolveIdentity(ctx context.Context, req *http.Request) (*Identity, error) {
	tok := auth.TokenFromRequest(req)
	if tok == "" {
		return nil, nil
	}
	u, err := r.mgr.Validate(ctx, tok)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			return nil, nil
		}
		return nil, err
	}
	return &Identity{
		UserID:        u.ID,
		TenantID:      u.TenantID,
		UserCreatedAt: u.CreatedAt,
	}, nil
}

var _ IdentityResolver = (*SessionResolver)(nil)
