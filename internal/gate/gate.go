// Package gate decides, per request, whether a caller may reach a protected
// route. It combines identity resolution, the tenant's current subscription,
// and trial evaluation into a single Pass/Redirect decision, and performs the
// lazy trial expiry as a side effect of the first request that notices a trial
// is past due.
//
// Quota enforcement does not happen here. The gate answers "may this tenant
// use the panel at all"; per-resource limits are checked by the provisioning
// endpoints.
package gate

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zappanel/zappanel/internal/metrics"
	"github.com/zappanel/zappanel/internal/subscription"
	"github.com/zappanel/zappanel/internal/trial"
)

// Identity is the resolved caller of a request.
type Identity struct {
	UserID        string
	TenantID      string // empty when the user has no tenant yet
	UserCreatedAt time.Time
}

// IdentityResolver turns request credentials into an Identity.
// A nil Identity with nil error means the request is unauthenticated;
// a non-nil error means the backing store failed.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, r *http.Request) (*Identity, error)
}

// SubscriptionSource is the slice of the subscription store the gate needs.
type SubscriptionSource interface {
	FindCurrent(ctx context.Context, tenantID string) (*subscription.Subscription, error)
	UpdateStatus(ctx context.Context, id string, status subscription.Status, updatedAt time.Time) error
}

// Config holds the redirect targets and allow-listed namespaces. Paths are
// configuration, not literals, so pages can be relocated without touching
// gating logic.
type Config struct {
	// LoginPath receives unauthenticated requests, with the original path in
	// a "redirect" query parameter.
	LoginPath string
	// PlanSelectionPath receives tenants without usable access.
	PlanSelectionPath string
	// SubscriptionPrefix is the subscription-management namespace a suspended
	// tenant may still reach.
	SubscriptionPrefix string
	// QRPrefix is the QR-provisioning namespace; redirects out of it carry an
	// origin marker so plan selection can route the user back.
	QRPrefix string
	// TrialFallbackDays is the account-age trial window (TRIAL_DAYS) applied
	// when a tenant has no subscription row. Zero means trial.DefaultDays.
	TrialFallbackDays int
}

// Decision is the gate's terminal output for one request.
type Decision struct {
	Pass         bool
	RedirectPath string
	Query        url.Values
}

func pass() Decision { return Decision{Pass: true} }

func redirect(path string, query url.Values) Decision {
	return Decision{RedirectPath: path, Query: query}
}

// Location renders the redirect target including query parameters.
func (d Decision) Location() string {
	if d.Pass || d.RedirectPath == "" {
		return ""
	}
	if len(d.Query) == 0 {
		return d.RedirectPath
	}
	return d.RedirectPath + "?" + d.Query.Encode()
}

// Gate evaluates access for protected routes.
type Gate struct {
	cfg      Config
	resolver IdentityResolver
	subs     SubscriptionSource
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the gate.
type Option func(*Gate)

// WithClock overrides the gate's clock (for tests).
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates an access gate.
func New(cfg Config, resolver IdentityResolver, subs SubscriptionSource, logger *slog.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		cfg:      cfg,
		resolver: resolver,
		subs:     subs,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate produces the gating decision for a request to a protected path.
//
// Any store failure along the way fails open: the request is allowed through
// and the failure is surfaced as a warning log plus a counter, because this
// read path must not become a total outage. A lookup timeout is a lookup
// error.
func (g *Gate) Evaluate(ctx context.Context, r *http.Request) Decision {
	path := r.URL.Path
	now := g.now()

	ident, err := g.resolver.ResolveIdentity(ctx, r)
	if err != nil {
		return g.failOpen("identity", err)
	}
	if ident == nil {
		q := url.Values{}
		q.Set("redirect", path)
		return g.record("redirect_login", redirect(g.cfg.LoginPath, q))
	}

	if ident.TenantID == "" {
		// Authenticated but not yet bound to a tenant: everything funnels to
		// plan selection, except plan selection itself.
		if path == g.cfg.PlanSelectionPath {
			return g.record("pass", pass())
		}
		return g.record("redirect_plans", g.planSelection(path))
	}

	sub, err := g.subs.FindCurrent(ctx, ident.TenantID)
	if err != nil && err != subscription.ErrNotFound {
		return g.failOpen("subscription", err)
	}

	if sub == nil || err == subscription.ErrNotFound {
		// No subscription row at all: account-age trial fallback.
		access := trial.EvaluateWindow(nil, ident.UserCreatedAt, now, g.cfg.TrialFallbackDays)
		if access.CanUseFeatures {
			return g.record("pass", pass())
		}
		if path == g.cfg.PlanSelectionPath {
			return g.record("pass", pass())
		}
		return g.record("redirect_plans", g.planSelection(path))
	}

	switch sub.Status {
	case subscription.StatusTrial:
		updated, transitioned, err := subscription.ExpireIfDue(ctx, g.subs, sub, now)
		if err != nil {
			return g.failOpen("expiry", err)
		}
		if !transitioned {
			// An unexpired trial grants full feature access; resource counts
			// are not consulted at this layer.
			return g.record("pass", pass())
		}
		metrics.TrialExpirationsTotal.Inc()
		g.logger.Info("trial expired, subscription suspended",
			"subscription_id", updated.ID,
			"tenant_id", updated.TenantID,
		)
		return g.suspended(path)

	case subscription.StatusSuspended, subscription.StatusCancelled:
		// FindCurrent filters these out, but the exhaustive switch keeps a
		// future store change from silently passing them through.
		return g.suspended(path)

	case subscription.StatusActive:
		return g.record("pass", pass())
	}

	g.logger.Warn("subscription has unknown status, failing open",
		"subscription_id", sub.ID, "status", string(sub.Status))
	return g.record("pass", pass())
}

// suspended applies the suspended-tenant rule: only the plan-selection page
// and the subscription-management namespace stay reachable.
func (g *Gate) suspended(path string) Decision {
	if path == g.cfg.PlanSelectionPath || strings.HasPrefix(path, g.cfg.SubscriptionPrefix) {
		return g.record("pass", pass())
	}
	return g.record("redirect_plans", g.planSelection(path))
}

// planSelection builds the plan-selection redirect, tagging requests that came
// from the QR-provisioning namespace with an origin marker.
func (g *Gate) planSelection(fromPath string) Decision {
	q := url.Values{}
	if g.cfg.QRPrefix != "" && strings.HasPrefix(fromPath, g.cfg.QRPrefix) {
		q.Set("origin", "qr")
	}
	return redirect(g.cfg.PlanSelectionPath, q)
}

func (g *Gate) record(outcome string, d Decision) Decision {
	metrics.GateDecisionsTotal.WithLabelValues(outcome).Inc()
	return d
}

func (g *Gate) failOpen(stage string, err error) Decision {
	metrics.GateFailOpenTotal.WithLabelValues(stage).Inc()
	g.logger.Warn("gate lookup failed, failing open", "stage", stage, "error", err)
	return pass()
}
