package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// LoginRateLimit throttles login attempts per client IP using a Redis
// counter with a rolling window. A nil client or a Redis failure lets the
// request through: the limiter guards against brute force, it is not a
// correctness dependency.
func LoginRateLimit(client *redis.Client, attempts int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if attempts <= 0 {
		attempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("ratelimit:login:%s", c.ClientIP())

		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.Warn("rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(c.Request.Context(), key, window).Err(); err != nil {
				logger.Warn("failed to set rate limit window", zap.Error(err))
			}
		}
		if count > int64(attempts) {
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many login attempts, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
