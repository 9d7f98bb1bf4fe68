package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/metergate/adapters/ginutil"
	"github.com/open-rails/metergate/authflow"
)

// HandleOAuthAuthorizeGET redirects the caller's browser to the
// provider's consent screen. state passes through opaquely.
func HandleOAuthAuthorizeGET(flow *authflow.Flow, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOAuth) {
			ginutil.TooMany(c)
			return
		}
		c.Redirect(http.StatusFound, flow.AuthorizeURL(c.Query("state")))
	}
}
