package trial

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zappanel/zappanel/internal/auth"
	"github.com/zappanel/zappanel/internal/entitlement"
	"github.com/zappanel/zappanel/internal/subscription"
	"github.com/zappanel/zappanel/internal/usage"
)

// Handler serves the account access summary the dashboard renders its
// banners and usage bars from.
type Handler struct {
	subs         subscription.Store
	counter      usage.Counter
	calc         *entitlement.Calculator
	fallbackDays int
	clock        func() time.Time
}

// NewHandler creates a new trial status handler. fallbackDays is the
// account-age trial window (TRIAL_DAYS); zero means DefaultDays.
func NewHandler(subs subscription.Store, counter usage.Counter, calc *entitlement.Calculator, fallbackDays int) *Handler {
	return &Handler{subs: subs, counter: counter, calc: calc, fallbackDays: fallbackDays, clock: time.Now}
}

// RegisterRoutes sets up the access status route; requires a session.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/access", h.GetAccess)
}

// GetAccess handles GET /v1/access. One payload with the trial verdict,
// aggregated limits, current usage, and utilization per resource.
func (h *Handler) GetAccess(c *gin.Context) {
	u, ok := auth.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	now := h.clock()

	if u.TenantID == "" {
		res := EvaluateWindow(nil, u.CreatedAt, now, h.fallbackDays)
		c.JSON(http.StatusOK, gin.H{"access": res})
		return
	}

	sub, err := h.subs.FindCurrent(c.Request.Context(), u.TenantID)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	res := EvaluateWindow(sub, u.CreatedAt, now, h.fallbackDays)

	all, err := h.subs.ListByTenant(c.Request.Context(), u.TenantID, time.Time{}, "", 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	limits := h.calc.AggregateLimits(all)

	snap, err := h.counter.Snapshot(c.Request.Context(), u.TenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access":      res,
		"limits":      limits,
		"usage":       snap,
		"utilization": entitlement.UsagePercentage(limits, snap),
	})
}
