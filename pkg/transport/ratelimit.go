package transport

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/meta-node-blockchain/benor/pkg/logger"
)

// RateLimiter holds one token bucket per route. Each allows limit requests per
// second with a burst of the same size. Routes without a limit are unlimited.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mutex    sync.Mutex
}

func NewRateLimiter(limits map[string]int) *RateLimiter {
	rl := &RateLimiter{limiters: make(map[string]*rate.Limiter)}
	for route, limitPerSecond := range limits {
		if limitPerSecond > 0 {
			rl.limiters[route] = rate.NewLimiter(rate.Limit(limitPerSecond), limitPerSecond)
		}
	}
	return rl
}

// Allow consumes a token for route, if the route is limited.
func (rl *RateLimiter) Allow(route string) bool {
	rl.mutex.Lock()
	limiter, exists := rl.limiters[route]
	rl.mutex.Unlock()
	if !exists {
		return true
	}
	return limiter.Allow()
}

// Middleware rejects requests over the limit of their route with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if !rl.Allow(route) {
			logger.Debug("rate limit exceeded for %s", route)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded for " + route})
			return
		}
		c.Next()
	}
}
