package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Counter increments key and returns the count in the current window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RedisCounter struct {
	rdb redis.Cmdable
}

func NewRedisCounter(rdb redis.Cmdable) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Incr sends INCR and EXPIRE NX in one MULTI, so a key can never be left
// without a TTL. EXPIRE NX needs Redis 7.
func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter is a fixed-window limiter shared by every instance through
// Redis.
type RateLimiter struct {
	counter Counter
	Prefix  string
	Limit   int // requests
	Window  time.Duration
	log     *zap.Logger
}

func NewRateLimiter(counter Counter, prefix string, limit int, window time.Duration, log *zap.Logger) *RateLimiter {
	return &RateLimiter{counter: counter, Prefix: prefix, Limit: limit, Window: window, log: log}
}

// MiddlewareByKey limits per keyFunc(c). If Redis is unreachable the
// request is let through.
func (r *RateLimiter) MiddlewareByKey(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("%s%s", r.Prefix, keyFunc(c))
		ctx, cancel := context.WithTimeout(c.UserContext(), 500*time.Millisecond)
		defer cancel()

		count, err := r.counter.Incr(ctx, key, r.Window)
		if err != nil {
			r.log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			return c.Next()
		}

		remaining := int64(r.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count > int64(r.Limit) {
			return fail(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}

// ByUser keys on the authenticated user, falling back to the client IP.
func ByUser(c *fiber.Ctx) string {
	if id := UserID(c); id != "" {
		return "user:" + id
	}
	return "ip:" + c.IP()
}
