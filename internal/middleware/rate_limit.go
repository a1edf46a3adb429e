package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimit applies a fixed one-minute window of perMinute requests per
// client IP, backed by redis so the limit holds across replicas. Redis
// trouble fails open: a broken limiter must not lock everyone out of login.
func RateLimit(client *redis.Client, log zerolog.Logger, name string, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || perMinute <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", name, c.ClientIP())

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("limiter", name).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, time.Minute).Err(); err != nil {
				// Without a TTL the counter would never reset and the IP
				// would stay limited forever; drop the key and fail open.
				log.Warn().Err(err).Str("limiter", name).Msg("rate limit window arm failed, allowing request")
				client.Del(ctx, key)
				c.Next()
				return
			}
		}

		if count > int64(perMinute) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}

		c.Next()
	}
}
