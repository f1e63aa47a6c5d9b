package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nishant-gupta/smartkosh-sub000/pkg/response"
)

// RateLimit rejects requests once the shared token bucket is drained.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", "")
			c.Abort()
			return
		}
		c.Next()
	}
}
