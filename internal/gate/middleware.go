package gate

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware applies the gate's decision to every request in the group.
// Redirects are 302s; the gate never surfaces an error to the client.
func Middleware(g *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Evaluate(c.Request.Context(), c.Request)
		if d.Pass {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, d.Location())
		c.Abort()
	}
}
