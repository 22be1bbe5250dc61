package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimit caps requests per (client IP, route) inside a fixed window. It
// keeps counters in process memory, which is enough for a single-instance
// deployment; the public submission and login routes are the ones that need
// the cap.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	type bucket struct {
		count     int
		windowEnd time.Time
	}

	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)

	// Drop stale buckets once per window so the map cannot grow without bound.
	tick := time.NewTicker(window)
	go func() {
		for range tick.C {
			now := time.Now()
			mu.Lock()
			for k, b := range buckets {
				if now.After(b.windowEnd) {
					delete(buckets, k)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		b, ok := buckets[key]
		if !ok || now.After(b.windowEnd) {
			b = &bucket{windowEnd: now.Add(window)}
			buckets[key] = b
		}
		b.count++
		remaining := maxRequests - b.count
		resetIn := time.Until(b.windowEnd)
		mu.Unlock()

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if b.count > maxRequests {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}

		c.Next()
	}
}
