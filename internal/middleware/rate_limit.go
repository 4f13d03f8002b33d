package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures the write limiter
type RateLimitConfig struct {
	Limit     int           // requests allowed per Window
	Window    time.Duration // sliding window length
	KeyPrefix string
	Message   string
}

// DefaultRateLimitConfig returns the limit applied to forum write endpoints
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:     30,
		Window:    time.Minute,
		KeyPrefix: "forum:ratelimit:",
		Message:   "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.",
	}
}

// KEYS[1] bucket, ARGV: limit, window ms, now ms, member.
// Returns {allowed, remaining, oldest ms}.
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', tonumber(ARGV[3]) - tonumber(ARGV[2]))
local used = redis.call('ZCARD', KEYS[1])
local limit = tonumber(ARGV[1])
if used >= limit then
    local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
    return {0, 0, tonumber(oldest[2] or ARGV[3])}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {1, limit - used - 1, 0}
`)

type rateDecision struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

func allowRequest(ctx context.Context, client *redis.Client, cfg RateLimitConfig, key string, now time.Time) (rateDecision, error) {
	windowMs := cfg.Window.Milliseconds()
	nowMs := now.UnixMilli()
	res, err := slidingWindow.Run(ctx, client, []string{key}, cfg.Limit, windowMs, nowMs, uuid.NewString()).Int64Slice()
	if err != nil {
		return rateDecision{}, err
	}
	d := rateDecision{allowed: res[0] == 1, remaining: res[1]}
	if !d.allowed {
		d.retryAfter = time.Duration(res[2]+windowMs-nowMs) * time.Millisecond
		if d.retryAfter < time.Second {
			d.retryAfter = time.Second
		}
	}
	return d, nil
}

// RateLimit limits requests per member, falling back to the client IP for guests.
// A nil client or a Redis failure lets the request through.
func RateLimit(redisClient *redis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return func(c *gin.Context) {
		if redisClient == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		key := cfg.KeyPrefix + "ip:" + c.ClientIP()
		if userID := GetUserID(c); userID != 0 {
			key = cfg.KeyPrefix + "user:" + strconv.FormatUint(userID, 10)
		}

		d, err := allowRequest(c.Request.Context(), redisClient, cfg, key, time.Now())
		if err != nil {
			logger.GetLogger().Warn().Err(err).Str("key", key).Msg("rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
		if !d.allowed {
			c.Header("Retry-After", strconv.Itoa(int(d.retryAfter.Seconds())))
			common.ErrorResponse(c, http.StatusTooManyRequests, cfg.Message, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
