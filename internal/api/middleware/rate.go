package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// Scope is "per_ip" or "global".
	Scope string
}

// DefaultRateLimitConfig returns the daemon's default rate limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		Scope:             "per_ip",
	}
}

// clientTTL is how long an idle client keeps its limiter before the
// pool forgets it.
const clientTTL = 3 * time.Minute

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per client IP and sweeps idle
// entries so the map cannot grow without bound.
type limiterPool struct {
	mu        sync.Mutex
	clients   map[string]*rateClient
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	return &limiterPool{
		clients:   make(map[string]*rateClient),
		rps:       rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.Burst,
		ttl:       clientTTL,
		lastSweep: time.Now(),
	}
}

func (p *limiterPool) allow(ip string, now time.Time) bool {
	p.mu.Lock()
	cl, ok := p.clients[ip]
	if !ok {
		cl = &rateClient{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.clients[ip] = cl
	}
	cl.lastSeen = now

	if now.Sub(p.lastSweep) > p.ttl {
		p.sweepLocked(now)
	}
	limiter := cl.limiter
	p.mu.Unlock()

	return limiter.Allow()
}

func (p *limiterPool) sweepLocked(now time.Time) {
	for ip, cl := range p.clients {
		if now.Sub(cl.lastSeen) > p.ttl {
			delete(p.clients, ip)
		}
	}
	p.lastSweep = now
}

func tooManyRequests(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	c.Abort()
}

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	pool := newLimiterPool(cfg)
	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP(), time.Now()) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}

// GlobalRateLimit creates a middleware with one shared token bucket.
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}

// Limiter picks the middleware matching cfg.Scope. Anything other than
// "global" means per-IP.
func Limiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Scope == "global" {
		return GlobalRateLimit(cfg)
	}
	return RateLimit(cfg)
}
