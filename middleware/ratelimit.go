package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/A-tamer/hospital-management-system/config"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
)

const (
	// Rate limiting defaults
	defaultRateLimit  = 10               // 10 requests
	defaultRateWindow = 10 * time.Minute // per 10 minutes
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// RateLimiter limits requests per caller and endpoint in fixed windows
// counted in Redis. The caller is the resolved account, else the client IP.
// Without Redis every request is allowed.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit == 0 {
		cfg.Limit = defaultRateLimit
	}
	if cfg.Window == 0 {
		cfg.Window = defaultRateWindow
	}

	return func(c *gin.Context) {
		caller := c.ClientIP()
		actor := ""
		if account := GetAccount(c); account != nil {
			caller = account.Email
			actor = account.Email
		}
		endpoint := c.Request.URL.Path
		key := rateLimitKey(endpoint, caller)

		allowed, err := checkRateLimit(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			// fail open
			log := util.Logger()
			log.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
			c.Next()
			return
		}
		if !allowed {
			util.LogRateLimitExceeded(actor, c.ClientIP(), endpoint)
			util.CallTooManyRequests(c, util.APIErrorParams{
				Msg: "Too many requests. Please try again later.",
				Err: errors.New("rate limit exceeded"),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func rateLimitKey(endpoint, caller string) string {
	return fmt.Sprintf("ratelimit:%s:%s", endpoint, caller)
}

// checkRateLimit counts a hit and reports whether the caller is still within
// limit. The window starts at the first hit.
func checkRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return true, nil
	}

	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// ResetRateLimit clears the counter of a caller on an endpoint.
func ResetRateLimit(ctx context.Context, caller, endpoint string) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return errors.New("redis not available")
	}
	return rdb.Del(ctx, rateLimitKey(endpoint, caller)).Err()
}
