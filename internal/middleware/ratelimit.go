package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// ClientRateLimiter keeps one token bucket per client IP. Buckets idle for
// longer than the idle window are dropped on the next sweep.
type ClientRateLimiter struct {
	limit   rate.Limit
	burst   int
	idle    time.Duration
	mu      sync.Mutex
	clients map[string]*clientBucket
	lastGC  time.Time
	now     func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientRateLimiter allows perSecond requests per client with the given burst.
func NewClientRateLimiter(perSecond float64, burst int) *ClientRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ClientRateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    10 * time.Minute,
		clients: make(map[string]*clientBucket),
		lastGC:  time.Now(),
		now:     time.Now,
	}
}

// Allow reports whether client may make a request now.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > l.idle {
		for key, bucket := range l.clients {
			if now.Sub(bucket.lastSeen) > l.idle {
				delete(l.clients, key)
			}
		}
		l.lastGC = now
	}

	bucket, ok := l.clients[client]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients.
func (l *ClientRateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RateLimit rejects requests over the per-client budget with 429.
func RateLimit(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewServiceError(
			domain.ErrRateLimit,
			"Rate limit exceeded",
			"",
			c.GetString(CorrelationIDKey),
		))
	}
}
