package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"election-system/internal/api/models"
)

type rateLimiter struct {
	visitors map[string]*visitor
	mutex    sync.Mutex
	rate     int
	window   time.Duration
}

type visitor struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanupExpiredVisitors()
	return rl
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.windowStart) > rl.window {
		rl.visitors[ip] = &visitor{count: 1, windowStart: now, lastSeen: now}
		return true
	}

	v.lastSeen = now
	if v.count >= rl.rate {
		return false
	}
	v.count++
	return true
}

func (rl *rateLimiter) cleanupExpiredVisitors() {
	for range time.Tick(10 * time.Minute) {
		rl.mutex.Lock()
		cutoff := time.Now().Add(-30 * time.Minute)
		for ip, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, ip)
			}
		}
		rl.mutex.Unlock()
	}
}

// RateLimit caps requests per client IP over a fixed window.
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	limiter := newRateLimiter(rate, window)

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, models.Fail(
				models.NewAPIError(models.ErrCodeRateLimitExceeded,
					"Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)))
			c.Abort()
			return
		}
		c.Next()
	}
}
