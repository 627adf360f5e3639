package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dockmap/auth-service/internal/dto"
	"github.com/dockmap/auth-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter is the sliding window limiter behind RateLimitMiddleware
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	GetRemainingRequests(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(limiter Limiter, limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			var exceeded *service.RateLimitExceededError
			if !errors.As(err, &exceeded) {
				// fail open when Redis is unavailable
				zap.L().Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				c.Next()
				return
			}

			retryAfter := int(math.Ceil(exceeded.RetryAfter.Seconds()))
			if retryAfter <= 0 {
				retryAfter = int(window.Seconds())
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Retry-After", strconv.Itoa(retryAfter))
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: err.Error(),
			})
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: "Rate limit exceeded",
			})
			return
		}

		remaining, err := limiter.GetRemainingRequests(c.Request.Context(), key, limit, window)
		if err == nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		c.Next()
	}
}

// IPBasedKey extracts rate limit key from client IP
func IPBasedKey(c *gin.Context) string {
	// X-Forwarded-For can contain multiple IPs, the first one is the client
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return c.ClientIP()
}

// RouteAndIPKey scopes the limit to the route so one flow does not exhaust another
func RouteAndIPKey(c *gin.Context) string {
	return c.FullPath() + ":" + IPBasedKey(c)
}
