package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
)

const issueLimitWindow = 24 * time.Hour

// IssueRateLimiter caps issue creation per reporter per day. A limit of 0
// disables it. Redis failures let the request through.
func IssueRateLimiter(client *redis.Client, prefix string, limit int, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if limit <= 0 || client == nil {
			c.Next()
			return
		}
		sc, ok := CurrentSession(c)
		if !ok || sc.UserID == "" {
			unauthorized(c, "No authorization token provided")
			return
		}

		ctx := c.Request.Context()
		userKey := prefix + ":" + sc.UserID

		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", userKey), zap.Error(err))
			c.Next()
			return
		}
		// TTL only on the first hit of the window.
		if count == 1 {
			if err := client.Expire(ctx, userKey, issueLimitWindow).Err(); err != nil {
				logger.Warn("rate limiter ttl not set", zap.String("key", userKey), zap.Error(err))
			}
		}

		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, userKey).Result()
			ae := apperr.RateLimited("rate limit exceeded")
			c.AbortWithStatusJSON(ae.Status, gin.H{
				"error":       ae.Message,
				"code":        ae.Kind,
				"retry_after": retryAfter.Seconds(),
			})
			return
		}
		c.Next()
	}
}
