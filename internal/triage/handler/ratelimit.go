package handler

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 5 * time.Minute
)

// unlimitedPaths are probe endpoints that must answer even under load.
var unlimitedPaths = map[string]bool{"/healthz": true, "/metrics": true}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter holds one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
}

func newClientLimiter(rps, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

func (cl *clientLimiter) bucket(ip string, now time.Time) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	b, ok := cl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep drops buckets idle since before now-limiterIdleTTL and returns how
// many remain.
func (cl *clientLimiter) sweep(now time.Time) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for ip, b := range cl.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(cl.buckets, ip)
		}
	}
	return len(cl.buckets)
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Idle buckets are swept until done is closed.
// /healthz and /metrics are never limited.
func RateLimiter(rps, burst int, done <-chan struct{}) gin.HandlerFunc {
	cl := newClientLimiter(rps, burst)

	go func() {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				cl.sweep(now)
			case <-done:
				return
			}
		}
	}()

	return func(c *gin.Context) {
		if unlimitedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		now := time.Now()
		lim := cl.bucket(c.ClientIP(), now)
		if !lim.AllowN(now, 1) {
			c.Header("Retry-After", retryAfter(lim, now))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// retryAfter is the whole number of seconds until one token is available,
// never less than 1.
func retryAfter(lim *rate.Limiter, now time.Time) string {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return "1"
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return strconv.Itoa(int(math.Max(1, math.Ceil(delay.Seconds()))))
}
