package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/metergate/adapters/ginutil"
	core "github.com/open-rails/metergate/core"
	"github.com/open-rails/metergate/entitlements"
	"github.com/open-rails/metergate/marketdata"
)

// HandleScanPOST serves the metered scan endpoint. Allowed callers get
// proxied data; blocked callers get 402 with a checkout session URL.
func HandleScanPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLScan) {
			ginutil.TooMany(c)
			return
		}

		var req marketdata.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request_body")
			return
		}

		res, err := svc.Scan(c.Request.Context(), c.GetHeader("Authorization"), req)
		switch {
		case err == nil:
		case core.IsUnauthenticated(err):
			ginutil.Unauthorized(c)
			return
		case errors.Is(err, marketdata.ErrInvalidPayload):
			ginutil.BadRequest(c, "invalid_request_body")
			return
		case errors.Is(err, entitlements.ErrStoreUnavailable):
			ginutil.Unavailable(c, "try_again")
			return
		default:
			ginutil.ServerErr(c, "upstream_failure")
			return
		}

		if res.Classification == entitlements.RequirePayment {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":            "Payment required",
				"checkout_session": res.CheckoutURL,
			})
			return
		}
		c.JSON(http.StatusOK, res.Rows)
	}
}
