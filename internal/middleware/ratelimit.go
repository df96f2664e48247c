package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"eventix/internal/metrics"
	"eventix/internal/models"

	"github.com/gin-gonic/gin"
)

// Limiter counts hits per key in a fixed window. Implemented by cache.ValkeyClient.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error)
}

// RateLimit caps requests per client IP. When the limiter is unreachable
// requests are let through.
func RateLimit(limiter Limiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, reset, err := limiter.Allow(c.Request.Context(), c.ClientIP(), limit, window)
		if err != nil {
			slog.Warn("Rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("RateLimit-Limit", strconv.Itoa(limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(reset.Seconds())))

		if !allowed {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.MessageResponse{
				Message: "Too many requests from this IP, please try again later.",
			})
			return
		}

		c.Next()
	}
}
