package v1

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// principalLimiter - token bucket на каждого принципала
type principalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newPrincipalLimiter(perSecond float64, burst int) *principalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &principalLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *principalLimiter) allow(key string) bool {
	// Нулевой лимит отключает ограничение
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// limitLocation ограничивает частоту точек трека от одного принципала
func (h *Handler) limitLocation() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.locationLimiter.allow(principalFrom(c).ID) {
			h.logger.WithField("principal", principalFrom(c).ID).Warn("Location rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
