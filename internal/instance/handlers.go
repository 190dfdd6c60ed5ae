package instance

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zappanel/zappanel/internal/auth"
	"github.com/zappanel/zappanel/internal/entitlement"
	"github.com/zappanel/zappanel/internal/security"
	"github.com/zappanel/zappanel/internal/validation"
)

// Handler provides HTTP endpoints for instance management.
type Handler struct {
	service *Service
}

// NewHandler creates a new instance handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up instance routes; all require a session and tenant.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/instances", h.CreateInstance)
	r.GET("/instances", h.ListInstances)
	r.GET("/instances/:id", h.GetInstance)
	r.DELETE("/instances/:id", h.DeleteInstance)
}

// CreateInstance handles POST /v1/instances.
func (h *Handler) CreateInstance(c *gin.Context) {
	tenantID := auth.GetTenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "no_tenant", "message": "create a tenant first"})
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Kind        Kind   `json:"kind" binding:"required"`
		Phone       string `json:"phone"`
		EndpointURL string `json:"endpointUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and kind required"})
		return
	}
	if req.Kind != KindNative && req.Kind != KindExternal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_kind", "message": "kind must be native or external"})
		return
	}
	if req.Kind == KindExternal && req.EndpointURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "endpointUrl required for external instances"})
		return
	}
	req.Phone = validation.SanitizePhone(req.Phone)
	if errs := validation.Validate(
		validation.ValidPhone("phone", req.Phone),
		validation.ValidWebhookURL("endpointUrl", req.EndpointURL),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": errs.Error()})
		return
	}
	if req.EndpointURL != "" {
		// The panel calls external endpoints server-side; SSRF check up front.
		if err := security.ValidateEndpointURL(req.EndpointURL); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_endpoint", "message": err.Error()})
			return
		}
	}

	inst, err := h.service.Create(c.Request.Context(), tenantID, CreateInput{
		Name:        validation.SanitizeString(req.Name, 200),
		Kind:        req.Kind,
		Phone:       validation.SanitizeString(req.Phone, 32),
		EndpointURL: validation.SanitizeString(req.EndpointURL, 500),
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create instance"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"instance": inst})
}

// ListInstances handles GET /v1/instances.
func (h *Handler) ListInstances(c *gin.Context) {
	tenantID := auth.GetTenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "no_tenant"})
		return
	}

	instances, err := h.service.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": instances, "count": len(instances)})
}

// GetInstance handles GET /v1/instances/:id.
func (h *Handler) GetInstance(c *gin.Context) {
	inst, ok := h.ownedInstance(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance": inst})
}

// DeleteInstance handles DELETE /v1/instances/:id.
func (h *Handler) DeleteInstance(c *gin.Context) {
	inst, ok := h.ownedInstance(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), inst.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete instance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "instance deleted", "id": inst.ID})
}

// ownedInstance loads the :id instance and checks tenant ownership, replying
// with the appropriate error when it fails.
func (h *Handler) ownedInstance(c *gin.Context) (*Instance, bool) {
	inst, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "instance not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return nil, false
	}
	if inst.TenantID != auth.GetTenantID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not your instance"})
		return nil, false
	}
	return inst, true
}
