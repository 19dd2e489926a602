package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
)

// RateLimitConfig bounds request throughput per caller.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// bucket tracks the remaining tokens for one caller.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

// take refills the bucket from elapsed time, then spends one token.
// When the bucket is empty it returns the wait in seconds until a token
// becomes available.
func (b *bucket) take(cfg RateLimitConfig, now time.Time) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.refilled).Seconds()
	b.tokens += elapsed * cfg.RequestsPerSecond
	if max := float64(cfg.BurstSize); b.tokens > max {
		b.tokens = max
	}
	b.refilled = now
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if cfg.RequestsPerSecond <= 0 {
		return false, 1
	}
	return false, int((1-b.tokens)/cfg.RequestsPerSecond) + 1
}

// limiter holds one bucket per caller key and evicts idle buckets so the
// map does not grow without bound.
type limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	takes   int
}

const (
	sweepEvery = 10000
	idleAfter  = 10 * time.Minute
)

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *limiter) allow(key string) (bool, int) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.BurstSize), refilled: now}
		l.buckets[key] = b
	}
	l.takes++
	if l.takes%sweepEvery == 0 {
		l.sweepLocked(now)
	}
	l.mu.Unlock()

	return b.take(l.cfg, now)
}

func (l *limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen) > idleAfter
		b.mu.Unlock()
		if idle {
			delete(l.buckets, key)
		}
	}
}

// RateLimit returns middleware enforcing a per-caller request budget.
// Authenticated callers are keyed by user ID so staff behind a shared NAT
// do not throttle each other; anonymous callers are keyed by remote IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	l := newLimiter(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := auth.UserIDFromContext(c.Request().Context())
			if key == "" {
				key = c.RealIP()
			}

			ok, retryAfter := l.allow(key)
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
