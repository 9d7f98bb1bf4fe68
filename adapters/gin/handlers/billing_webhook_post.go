package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/metergate/adapters/ginutil"
	core "github.com/open-rails/metergate/core"
	"github.com/open-rails/metergate/payments"
)

// HandleBillingWebhookPOST absorbs payment-processor notifications.
// Signature failures get 400 so the processor retries nothing; transient
// failures get 500 so redelivery kicks in.
func HandleBillingWebhookPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLWebhook) {
			ginutil.TooMany(c)
			return
		}

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			ginutil.BadRequest(c, "unreadable_body")
			return
		}

		err = svc.HandleNotification(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		switch {
		case err == nil:
		case errors.Is(err, payments.ErrVerificationFailed):
			ginutil.BadRequest(c, "signature_verification_failed")
			return
		default:
			ginutil.ServerErr(c, "reconciliation_failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
