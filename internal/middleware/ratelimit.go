package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter implements a sliding-window attempt counter keyed by an
// arbitrary string (client IP, username, or username+endpoint): it records
// a timestamp per attempt and counts how many fall within the trailing
// window, which (unlike a token bucket) lets GetAttempts report an exact
// count for login/reissue lockout messaging and ResetLimit clear a single
// key after a successful login without waiting out the window.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewRateLimiter returns an empty limiter and starts its background
// cleanup goroutine, which evicts keys whose newest attempt is older than
// CleanupThreshold so long-lived servers don't accumulate one slice per
// distinct IP/user forever.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{attempts: make(map[string][]time.Time)}
	go rl.cleanupRoutine()
	return rl
}

// CheckLimit records an attempt for key and reports whether it is within
// maxAttempts over the trailing window. Expired timestamps are pruned
// before counting so a key that has been idle past window always succeeds.
func (rl *RateLimiter) CheckLimit(key string, maxAttempts int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	live := rl.attempts[key][:0]
	for _, t := range rl.attempts[key] {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	if len(live) >= maxAttempts {
		rl.attempts[key] = live
		return false
	}

	rl.attempts[key] = append(live, now)
	return true
}

// GetAttempts reports how many attempts for key fall within the trailing
// window, without recording a new one.
func (rl *RateLimiter) GetAttempts(key string, window time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-window)
	count := 0
	for _, t := range rl.attempts[key] {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// ResetLimit clears every recorded attempt for key, used after a
// successful login so a legitimate user isn't left counting toward a
// lockout caused by earlier failed attempts.
func (rl *RateLimiter) ResetLimit(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-CleanupThreshold)
		for key, times := range rl.attempts {
			if len(times) == 0 || times[len(times)-1].Before(cutoff) {
				delete(rl.attempts, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware returns Gin middleware that rate limits by client IP, the
// shape every unauthenticated endpoint (login, register, token reissue)
// needs since there is no username yet to key on.
func (rl *RateLimiter) Middleware(maxAttempts int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.CheckLimit(key, maxAttempts, window) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "too many attempts, try again later",
			})
			return
		}
		c.Next()
	}
}

// KeyedMiddleware rate limits on a caller-supplied key instead of client
// IP, for routes where a more specific key stops abuse that per-IP limits
// would miss, e.g. repeated voice-channel join attempts by one user behind
// a shared NAT.
func (rl *RateLimiter) KeyedMiddleware(maxAttempts int, window time.Duration, keyFunc func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}
		if !rl.CheckLimit(key, maxAttempts, window) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "too many attempts, try again later",
			})
			return
		}
		c.Next()
	}
}
