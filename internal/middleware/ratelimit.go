package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/symptom-triage-mcp/internal/domain"
)

const maxTrackedClients = 10000

// RateLimiter keeps one token bucket per client IP. The least recently seen clients
// are dropped once maxTrackedClients is reached.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given
// burst for each client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	cache, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache,
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// NewRateLimiterFromConfig returns nil when limiting is disabled.
func NewRateLimiterFromConfig(cfg domain.RateLimitConfig) *RateLimiter {
	if !cfg.Enabled {
		return nil
	}
	return NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
}

// Allow reports whether the client may make a request now.
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.limiterFor(clientID).Allow()
}

func (rl *RateLimiter) limiterFor(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters.Get(clientID); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(clientID, l)
	return l
}

// Middleware rejects requests over the limit with 429. A nil limiter passes all
// requests through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}

		if !rl.Allow(c.ClientIP()) {
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewTriageError(
				domain.ErrCodeRateLimit, "too many requests", "", c.GetString("correlation_id")))
			return
		}
		c.Next()
	}
}
