package agent

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zappanel/zappanel/internal/auth"
	"github.com/zappanel/zappanel/internal/entitlement"
	"github.com/zappanel/zappanel/internal/security"
	"github.com/zappanel/zappanel/internal/validation"
)

// Handler provides HTTP endpoints for agent management.
type Handler struct {
	service *Service
}

// NewHandler creates a new agent handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up agent routes; all require a session and tenant.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/agents", h.CreateAgent)
	r.GET("/agents", h.ListAgents)
	r.GET("/agents/:id", h.GetAgent)
	r.PATCH("/agents/:id", h.UpdateAgent)
	r.DELETE("/agents/:id", h.DeleteAgent)
}

// CreateAgent handles POST /v1/agents.
func (h *Handler) CreateAgent(c *gin.Context) {
	tenantID := auth.GetTenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "no_tenant", "message": "create a tenant first"})
		return
	}

	var req struct {
		Name       string `json:"name" binding:"required"`
		Kind       Kind   `json:"kind" binding:"required"`
		InstanceID string `json:"instanceId"`
		Model      string `json:"model"`
		WebhookURL string `json:"webhookUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and kind required"})
		return
	}
	if req.Kind != KindInternal && req.Kind != KindExternal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_kind", "message": "kind must be internal or external"})
		return
	}
	if req.Kind == KindExternal && req.WebhookURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "webhookUrl required for external agents"})
		return
	}
	if errs := validation.Validate(validation.ValidWebhookURL("webhookUrl", req.WebhookURL)); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": errs.Error()})
		return
	}
	if req.WebhookURL != "" {
		// Webhooks are called server-side; SSRF check up front.
		if err := security.ValidateEndpointURL(req.WebhookURL); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_webhook", "message": err.Error()})
			return
		}
	}

	a, err := h.service.Create(c.Request.Context(), tenantID, CreateInput{
		Name:       validation.SanitizeString(req.Name, 200),
		Kind:       req.Kind,
		InstanceID: req.InstanceID,
		Model:      validation.SanitizeString(req.Model, 100),
		WebhookURL: validation.SanitizeString(req.WebhookURL, 500),
	})
	if err != nil {
		var limitErr *entitlement.LimitError
		if errors.As(err, &limitErr) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "entitlement_exceeded",
				"message": limitErr.Error(),
				"limit":   limitErr.Limit,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create agent"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"agent": a})
}

// ListAgents handles GET /v1/agents.
func (h *Handler) ListAgents(c *gin.Context) {
	tenantID := auth.GetTenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "no_tenant"})
		return
	}

	agents, err := h.service.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

// GetAgent handles GET /v1/agents/:id.
func (h *Handler) GetAgent(c *gin.Context) {
	a, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": a})
}

// UpdateAgent handles PATCH /v1/agents/:id. Kind is fixed at creation so the
// quota accounting stays consistent.
func (h *Handler) UpdateAgent(c *gin.Context) {
	a, ok := h.ownedAgent(c)
	if !ok {
		return
	}

	var req struct {
		Name       *string `json:"name"`
		Model      *string `json:"model"`
		WebhookURL *string `json:"webhookUrl"`
		Enabled    *bool   `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if req.Name != nil {
		a.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.Model != nil {
		a.Model = validation.SanitizeString(*req.Model, 100)
	}
	if req.WebhookURL != nil {
		a.WebhookURL = validation.SanitizeString(*req.WebhookURL, 500)
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}

	if err := h.service.Update(c.Request.Context(), a); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update agent"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": a})
}

// DeleteAgent handles DELETE /v1/agents/:id.
func (h *Handler) DeleteAgent(c *gin.Context) {
	a, ok := h.ownedAgent(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), a.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete agent"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "agent deleted", "id": a.ID})
}

// ownedAgent loads the :id agent and checks tenant ownership.
func (h *Handler) ownedAgent(c *gin.Context) (*Agent, bool) {
	a, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "agent not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return nil, false
	}
	if a.TenantID != auth.GetTenantID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not your agent"})
		return nil, false
	}
	return a, true
}
