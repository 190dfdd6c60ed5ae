package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zappanel/zappanel/internal/metrics"
)

// Handler provides HTTP endpoints for account and session management.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new auth handler.
func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// RegisterPublicRoutes sets up the unauthenticated auth routes.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	grp := r.Group("/auth")
	grp.POST("/register", h.Register)
	grp.POST("/login", h.Login)
}

// RegisterProtectedRoutes sets up routes that require a session.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	grp := r.Group("/auth")
	grp.POST("/logout", h.Logout)
	grp.GET("/me", h.Me)
}

// Register handles POST /v1/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and password (min 8 chars) required"})
		return
	}

	u, err := h.manager.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if err == ErrEmailTaken {
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to register"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and password required"})
		return
	}

	token, u, err := h.manager.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if err == ErrInvalidCredentials {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": "invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to log in"})
		return
	}

	metrics.ActiveSessions.Inc()
	c.SetCookie(SessionCookie, token, int(SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  u,
	})
}

// Logout handles POST /v1/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	if tok := TokenFromRequest(c.Request); tok != "" {
		_ = h.manager.Logout(c.Request.Context(), tok)
		metrics.ActiveSessions.Dec()
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me handles GET /v1/auth/me.
func (h *Handler) Me(c *gin.Context) {
	u, ok := GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
