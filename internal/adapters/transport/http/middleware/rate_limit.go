package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	last    time.Time
}

func (v *visitor) allow(now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = now
	return v.limiter.AllowN(now, 1)
}

func (v *visitor) idle(now time.Time, ttl time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Sub(v.last) > ttl
}

// NewHTTPRateLimitPerIP limits requests per client IP. Visitors live in an LRU
// of cacheSize entries and are dropped after ttl of inactivity. The sweeper
// stops when ctx is done.
func NewHTTPRateLimitPerIP(
	ctx context.Context,
	limit, burst, cacheSize int,
	ttl time.Duration,
) gin.HandlerFunc {
	visitors, _ := lru.New[string, *visitor](cacheSize)

	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				for _, key := range visitors.Keys() {
					if v, ok := visitors.Peek(key); ok && v.idle(now, ttl) {
						visitors.Remove(key)
					}
				}
			}
		}
	}()

	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}

		v, ok := visitors.Get(host)
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
			visitors.Add(host, v)
		}

		if !v.allow(time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
