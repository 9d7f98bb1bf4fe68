package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/metergate/adapters/ginutil"
	"github.com/open-rails/metergate/authflow"
)

// HandleOAuthTokenPOST exchanges an authorization code for provider
// tokens. Client credentials are checked against the configured pair
// before any provider call.
func HandleOAuthTokenPOST(flow *authflow.Flow, rl ginutil.RateLimiter) gin.HandlerFunc {
	type tokenReq struct {
		Code         string `json:"code"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		RedirectURI  string `json:"redirect_uri"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLOAuth) {
			ginutil.TooMany(c)
			return
		}

		var req tokenReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if !flow.ValidClient(req.ClientID, req.ClientSecret) {
			ginutil.BadRequest(c, "invalid_client_credentials")
			return
		}

		tok, err := flow.Exchange(c.Request.Context(), req.Code)
		if err != nil {
			ginutil.BadRequest(c, "code_exchange_failed")
			return
		}
		expiresIn := 0
		if !tok.Expiry.IsZero() {
			expiresIn = int(time.Until(tok.Expiry).Seconds())
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": tok.AccessToken,
			"token_type":   "bearer",
			"expires_in":   expiresIn,
		})
	}
}
