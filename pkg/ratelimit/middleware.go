package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	"festival/internal/shared/utils/response"
	"festival/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware applies the per-route limits. Reservation routes are skipped here
// because the inventory service enforces its own dedicated limit.
func Middleware(rateLimiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitType, ok := getRateLimitType(c.FullPath())
		if !ok {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		result, err := rateLimiter.IsAllowed(c.Request.Context(), clientIP, limitType)
		if err != nil {
			response.RespondJSON(c, "error", http.StatusInternalServerError,
				"Rate limit check failed", nil, nil)
			c.Abort()
			return
		}

		SetHeaders(c, result)

		if !result.Allowed {
			logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), clientIP, c.FullPath())
			response.RespondJSON(c, "error", http.StatusTooManyRequests,
				"Rate limit exceeded", nil, map[string]interface{}{
					"limit":      result.Limit,
					"reset_time": result.ResetTime,
				})
			c.Abort()
			return
		}

		c.Next()
	}
}

// SetHeaders exposes the limiter state to the client
func SetHeaders(c *gin.Context, result *Result) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime))
}

func getRateLimitType(path string) (RateLimitType, bool) {
	switch {
	case strings.HasSuffix(path, "/reserve"):
		return "", false

	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"),
		strings.HasPrefix(path, "/status"):
		return RateLimitTypeHealth, true

	case strings.Contains(path, "/admin/"),
		strings.Contains(path, "/template/"),
		strings.Contains(path, "/phase"),
		strings.Contains(path, "/audit"):
		return RateLimitTypeAdmin, true

	case strings.Contains(path, "/on-sale"),
		strings.Contains(path, "/stats/"),
		strings.Contains(path, "/conflicts"):
		return RateLimitTypePublic, true

	default:
		return RateLimitTypeDefault, true
	}
}
