package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/metergate/adapters/ginutil"
)

// HandleOAuthCallbackGET hands the authorization code back to the
// caller, who trades it in on the token endpoint.
func HandleOAuthCallbackGET(rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOAuth) {
			ginutil.TooMany(c)
			return
		}
		code := c.Query("code")
		if code == "" {
			ginutil.BadRequest(c, "authorization_code_missing")
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": code, "state": c.Query("state")})
	}
}
