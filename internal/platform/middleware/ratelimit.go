package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig tunes the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 100, BurstSize: 200}
}

// Buckets idle past idleEviction have fully refilled, so dropping them loses
// nothing; the sweep keeps the map from growing with one-off clients.
const (
	sweepInterval = 5 * time.Minute
	idleEviction  = 10 * time.Minute
)

// clientBucket is a token bucket refilled lazily at each check.
type clientBucket struct {
	tokens float64
	seen   time.Time
}

type limiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	cfg       RateLimitConfig
	lastSweep time.Time
}

// allow takes one token for key, reporting whether the request may proceed
// and, when it may not, how many seconds until a token is available.
func (l *limiter) allow(key string, now time.Time) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > sweepInterval {
		l.sweep(now)
	}

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{tokens: float64(l.cfg.BurstSize), seen: now}
		l.clients[key] = b
	}
	b.tokens += now.Sub(b.seen).Seconds() * l.cfg.RequestsPerSecond
	if burst := float64(l.cfg.BurstSize); b.tokens > burst {
		b.tokens = burst
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	retry := 1
	if l.cfg.RequestsPerSecond > 0 {
		retry = int((1-b.tokens)/l.cfg.RequestsPerSecond) + 1
	}
	return false, retry
}

func (l *limiter) sweep(now time.Time) {
	for key, b := range l.clients {
		if now.Sub(b.seen) > idleEviction {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// RateLimit throttles clients by IP with a token bucket per client.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	l := &limiter{
		clients:   make(map[string]*clientBucket),
		cfg:       cfg,
		lastSweep: time.Now(),
	}
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retry := l.allow(c.RealIP(), time.Now())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitHeader)
			if !ok {
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
