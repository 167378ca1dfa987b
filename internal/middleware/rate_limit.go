package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/options-simulator/pkg/response"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key. Buckets idle for longer than
// the idle timeout are discarded by Cleanup.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perSecond events per key with the given burst
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     5 * time.Minute,
		limiters: make(map[string]*limiterEntry),
	}
}

// Allow reports whether an event for key may happen now
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// Cleanup drops buckets not used within the idle timeout
func (l *RateLimiter) Cleanup() {
	cutoff := time.Now().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// Middleware limits requests per user_id path parameter, falling back to the client IP
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("user_id")
		if key == "" {
			key = c.ClientIP()
		}

		if !l.Allow(key) {
			response.TooManyRequests(c, "too many requests, please slow down")
			c.Abort()
			return
		}

		c.Next()
	}
}
