package subscription

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zappanel/zappanel/internal/auth"
	"github.com/zappanel/zappanel/internal/idgen"
	"github.com/zappanel/zappanel/internal/pagination"
	"github.com/zappanel/zappanel/internal/plan"
	"github.com/zappanel/zappanel/internal/traces"
)

// Handler provides HTTP endpoints for subscription management. Checkout here
// is a stand-in that activates immediately; a real payment provider would sit
// between create and activation.
type Handler struct {
	store   Store
	catalog *plan.Catalog
	logger  *slog.Logger
}

// NewHandler creates a new subscription handler.
func NewHandler(store Store, catalog *plan.Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, catalog: catalog, logger: logger}
}

// RegisterRoutes sets up subscription routes; all require a session and tenant.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/plans", h.ListPlans)
	r.GET("/subscriptions", h.ListSubscriptions)
	r.GET("/subscriptions/current", h.GetCurrent)
	r.POST("/subscriptions", h.CreateSubscription)
	r.POST("/subscriptions/:id/renew", h.RenewSubscription)
	r.POST("/subscriptions/:id/cancel", h.CancelSubscription)
}

// ListPlans handles GET /v1/plans. Public catalogue data, no tenant needed.
func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.catalog.List()})
}

// ListSubscriptions handles GET /v1/subscriptions with cursor pagination.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	tenantID := auth.GetTenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "no_tenant"})
		return
	}

	limit := parseLimit(c.Query("limit"), 50, 200)
	var before time.Time
	var beforeID string
	if cur, err := pagination.Decode(c.Query("cursor")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor"})
		return
	} else if cur != nil {
		before, beforeID = cur.CreatedAt, cur.ID
	}

	subs, err := h.store.ListByTenant(c.Request.Context(), tenantID, before, beforeID, limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	subs, next, more := pagination.ComputePage(subs, limit, func(s *Subscription) (time.Time, string) {
		return s.CreatedAt, s.ID
	})
	c.JSON(http.StatusOK, gin.H{
		"subscriptions": subs,
		"next_cursor":   next,
		"has_more":      more,
	})
}

// GetCurrent handles GET /v1/subscriptions/current.
func (h *Handler) GetCurrent(c *gin.Context) {
	tenantID := auth.GetTenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "no_tenant"})
		return
	}

	sub, err := h.store.FindCurrent(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no_subscription"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// CreateSubscription handles POST /v1/subscriptions. The plan is resolved
// through the catalogue and priced server-side; the row activates immediately.
func (h *Handler) CreateSubscription(c *gin.Context) {
	tenantID := auth.GetTenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "no_tenant", "message": "create a tenant first"})
		return
	}

	var req struct {
		PlanKey  string `json:"planKey" binding:"required"`
		Quantity int    `json:"quantity"`
		Cycle    string `json:"cycle"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "planKey required"})
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	cycle := plan.CycleMonthly
	if req.Cycle == string(plan.CycleYearly) {
		cycle = plan.CycleYearly
	}

	def, err := h.catalog.ByKey(req.PlanKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_plan", "message": "no such plan"})
		return
	}
	value, err := h.catalog.TotalPrice(def.Key, req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_plan", "message": "no such plan"})
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "subscription.Create",
		traces.TenantID(tenantID), traces.PlanKey(def.Key))
	defer span.End()

	now := time.Now()
	sub := &Subscription{
		ID:          idgen.WithPrefix("sub_"),
		TenantID:    tenantID,
		PlanName:    def.DisplayName,
		Quantity:    req.Quantity,
		Status:      StatusActive,
		Cycle:       cycle,
		ValueCents:  value,
		StartedAt:   now,
		NextDueDate: nextDue(now, cycle),
		PaidAt:      &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.Create(ctx, sub); err != nil {
		h.logger.Error("create subscription failed", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// RenewSubscription handles POST /v1/subscriptions/:id/renew. Reinstating a
// suspended or active row pushes the due date one cycle out and marks it paid.
func (h *Handler) RenewSubscription(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	if sub.Status != StatusSuspended && sub.Status != StatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "not_renewable", "message": "only active or suspended subscriptions renew"})
		return
	}

	now := time.Now()
	due := nextDue(now, sub.Cycle)
	if err := h.store.Renew(c.Request.Context(), sub.ID, due, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to renew"})
		return
	}
	sub.Status = StatusActive
	sub.NextDueDate = due
	sub.PaidAt = &now
	sub.UpdatedAt = now

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// CancelSubscription handles POST /v1/subscriptions/:id/cancel.
func (h *Handler) CancelSubscription(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	if sub.Status == StatusCancelled {
		c.JSON(http.StatusOK, gin.H{"subscription": sub})
		return
	}

	now := time.Now()
	if err := h.store.UpdateStatus(c.Request.Context(), sub.ID, StatusCancelled, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to cancel"})
		return
	}
	sub.Status = StatusCancelled
	sub.UpdatedAt = now
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

func (h *Handler) ownedSubscription(c *gin.Context) (*Subscription, bool) {
	sub, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "subscription not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return nil, false
	}
	if sub.TenantID != auth.GetTenantID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not your subscription"})
		return nil, false
	}
	return sub, true
}

// nextDue returns the due date one billing cycle after from.
func nextDue(from time.Time, cycle plan.Cycle) time.Time {
	if cycle == plan.CycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

func parseLimit(s string, defaultVal, maxVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultVal
	}
	if n > maxVal {
		return maxVal
	}
	return n
}
