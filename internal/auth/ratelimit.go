package auth

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
)

// RateLimiter counts attempts per key within a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

const rateKeyPrefix = "ticket-portal:ratelimit:"

// Returns {count, ttl_ms}. The window starts with the first hit.
var fixedWindowScript = redis.NewScript(`
    local count = redis.call('INCR', KEYS[1])
    if count == 1 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
    end
    local ttl = redis.call('PTTL', KEYS[1])
    return { count, ttl }
`)

type redisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter shares attempt counters across processes through Redis.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) RateLimiter {
	return &redisRateLimiter{client: client, limit: limit, window: window}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	vals, err := fixedWindowScript.Run(ctx, r.client, []string{rateKeyPrefix + key}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return true, 0, err
	}
	if len(vals) != 2 {
		return true, 0, nil
	}
	if vals[0] > int64(r.limit) {
		return false, time.Duration(vals[1]) * time.Millisecond, nil
	}
	return true, 0, nil
}

type attemptWindow struct {
	count   int
	resetAt time.Time
}

type memoryRateLimiter struct {
	mu        sync.Mutex
	limit     int
	span      time.Duration
	windows   map[string]*attemptWindow
	now       func() time.Time
	nextPrune time.Time
}

// NewMemoryRateLimiter keeps attempt counters in process memory.
func NewMemoryRateLimiter(limit int, span time.Duration) RateLimiter {
	return &memoryRateLimiter{limit: limit, span: span, windows: make(map[string]*attemptWindow), now: time.Now}
}

func (m *memoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneLocked(now)
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &attemptWindow{resetAt: now.Add(m.span)}
		m.windows[key] = w
	}
	w.count++
	if w.count > m.limit {
		return false, w.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

// pruneLocked drops lapsed windows, at most once per span.
func (m *memoryRateLimiter) pruneLocked(now time.Time) {
	if now.Before(m.nextPrune) {
		return
	}
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
	m.nextPrune = now.Add(m.span)
}

// LimitByIP rejects requests once the caller's IP exceeds the limiter. A
// non-positive limit or a nil limiter disables the check. Limiter failures
// let the request through.
func LimitByIP(limiter RateLimiter, scope string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		allowed, retryAfter, err := limiter.Allow(c.UserContext(), scope+":"+c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			return c.Next()
		}
		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return apperrors.NewTooManyRequests("Too many login attempts. Try again later.", secs)
		}
		return c.Next()
	}
}
