package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zappanel/zappanel/internal/logging"
)

const (
	// ContextKeyUser is the key for storing the authenticated user in gin context.
	ContextKeyUser = "authUser"
	// SessionCookie is the browser cookie carrying the session token.
	SessionCookie = "zp_session"
)

// TokenFromRequest pulls the session token from the Authorization header or
// the session cookie.
func TokenFromRequest(r *http.Request) string {
	if tok := r.Header.Get("Authorization"); tok != "" {
		return tok
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Middleware resolves the session token and sets the user in context if valid.
// It never rejects; pair with RequireAuth or the access gate for enforcement.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := TokenFromRequest(c.Request); tok != "" {
			if u, err := m.Validate(c.Request.Context(), tok); err == nil {
				c.Set(ContextKeyUser, u)
				c.Request = c.Request.WithContext(
					logging.WithTenant(c.Request.Context(), u.TenantID))
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid session.
func RequireAuth(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyUser); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Login required.",
			})
			return
		}
		c.Next()
	}
}

// GetUser returns the authenticated user from context.
func GetUser(c *gin.Context) (*User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	return v.(*User), true
}

// GetTenantID returns the authenticated user's tenant, or "".
func GetTenantID(c *gin.Context) string {
	u, ok := GetUser(c)
	if !ok {
		return ""
	}
	return u.TenantID
}
