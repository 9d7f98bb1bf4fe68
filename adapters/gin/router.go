// Package gategin assembles the gateway's HTTP surface on gin.
package gategin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/open-rails/metergate/adapters/gin/handlers"
	"github.com/open-rails/metergate/adapters/ginutil"
	"github.com/open-rails/metergate/authflow"
	core "github.com/open-rails/metergate/core"
)

// RequestID tags every response (and the gin context) with a request
// id, honoring one supplied by an upstream proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// NewRouter wires all routes. flow and rl may be nil: nil flow drops
// the oauth glue endpoints, nil rl disables abuse limiting.
func NewRouter(svc *core.Service, flow *authflow.Flow, rl ginutil.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.POST("/v1/scan", handlers.HandleScanPOST(svc, rl))
	r.POST("/v1/billing/webhook", handlers.HandleBillingWebhookPOST(svc, rl))

	if flow != nil {
		r.GET("/oauth/authorize", handlers.HandleOAuthAuthorizeGET(flow, rl))
		r.GET("/oauth/callback", handlers.HandleOAuthCallbackGET(rl))
		r.POST("/oauth/token", handlers.HandleOAuthTokenPOST(flow, rl))
	}

	return r
}
