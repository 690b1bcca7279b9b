package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitConfig configures the rate limiting middleware
type RateLimitConfig struct {
	// Requests per minute for general API endpoints
	RequestsPerMinute int
	// Requests per minute for grading and admin unlock
	ExpensiveRequestsPerMinute int
	// Burst size multiplier (burst = rate * multiplier)
	BurstMultiplier int
}

// DefaultRateLimitConfig returns the default limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute:          120,
		ExpensiveRequestsPerMinute: 20,
		BurstMultiplier:            2,
	}
}

// RateLimit limits requests per client using a fortify token bucket
func RateLimit(perMinute, burstMultiplier int) gin.HandlerFunc {
	if burstMultiplier <= 0 {
		burstMultiplier = 1
	}
	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     perMinute,
		Burst:    perMinute * burstMultiplier,
		Interval: time.Minute,
	})

	return func(c *gin.Context) {
		key := clientKey(c)
		if !limiter.Allow(c.Request.Context(), key) {
			LoggerFrom(c).Warn("rate limit exceeded",
				zap.String("client", key),
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", strconv.Itoa(60))
			Abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please try again later")
			return
		}
		c.Next()
	}
}

// clientKey prefers the authenticated user over the client address. The
// anonymous user is shared, so it falls back to the address too.
func clientKey(c *gin.Context) string {
	if id := GetIdentity(c); id != nil && id.UserID != AnonymousUser {
		return "user:" + id.UserID
	}
	return "ip:" + c.ClientIP()
}
