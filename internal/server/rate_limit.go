package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carepoints/internal/observability/logger"
	"go.uber.org/zap"
)

// UserRateLimit throttles point-mutating requests per caller and route.
func (s *Server) UserRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.userLimiter == nil || !s.userLimiter.Enabled() {
			c.Next()
			return
		}

		userID, err := callerID(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		decision := s.userLimiter.Allow(ctx, userID.String(), endpoint)

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			retryAfter := int((decision.RetryAfter + time.Second - 1) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, decision.Source)
			logger.FromContext(ctx).Info("rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("source", decision.Source),
			)
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	route := strings.TrimSpace(c.FullPath())
	if route == "" {
		route = c.Request.URL.Path
	}
	return c.Request.Method + " " + route
}
