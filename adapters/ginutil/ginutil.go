// Package ginutil holds shared helpers for the gin handlers: rate-limit
// gating and uniform error responses.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Rate-limit bucket names. Buckets guard abuse-prone endpoints only;
// entitlement metering happens in the store, not here.
const (
	RLScan    = "scan"
	RLWebhook = "webhook"
	RLOAuth   = "oauth"
)

// RateLimiter gates a request for a bucket/key pair.
type RateLimiter interface {
	Allow(bucket, key string) (bool, error)
}

// AllowNamed applies rl for the caller's IP. A nil limiter allows
// everything; a limiter failure is logged and fails open so a broken
// limiter backend cannot take the gateway down.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.Allow(bucket, c.ClientIP())
	if err != nil {
		logrus.WithError(err).WithField("bucket", bucket).Warn("rate limiter failure, failing open")
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}

func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func TooMany(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerErr(c *gin.Context, code string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}

func Unavailable(c *gin.Context, code string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": code})
}
