package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// unlimitedPaths are liveness endpoints.
var unlimitedPaths = map[string]bool{"/": true, "/health": true}

// RateLimitMiddleware applies a fixed window per client IP and route,
// counted in Redis. It fails open when Redis is unreachable.
func RateLimitMiddleware(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	window := time.Duration(cfg.RateLimitWindow) * time.Second
	limit := int64(cfg.RateLimitReqs)

	return func(c *gin.Context) {
		route := c.FullPath()
		if unlimitedPaths[route] {
			c.Next()
			return
		}

		count, ttl, err := hit(c.Request.Context(), rdb, rateLimitPrefix+c.ClientIP()+":"+route, window)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "error", err, "route", route)
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if count > limit {
			retryAfter := int(ttl.Round(time.Second) / time.Second)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": retryAfter,
					"limit":       limit,
					"route":       route,
				})
			c.Abort()
			return
		}

		c.Next()
	}
}

// hit increments the window counter for key and returns the new count with
// the time left in the window. The expiry is set when the key has none, which
// also repairs a counter whose EXPIRE was lost.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	ttl := pttl.Val()
	if ttl < 0 {
		if err := rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return incr.Val(), ttl, nil
}
