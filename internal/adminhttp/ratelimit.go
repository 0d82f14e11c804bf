package adminhttp

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter is a per-address token bucket plus the last time it was
// touched, so idle entries can be swept.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles the admin mux per source IP, so a single
// misbehaving dashboard or scraper can't starve /metrics or pprof for
// everyone else.
type IPRateLimiter struct {
	mu              sync.Mutex
	limiters        map[string]*ipLimiter
	perSecond       rate.Limit
	burst           int
	cleanupInterval time.Duration
}

// NewIPRateLimiter returns a limiter allowing perSecond requests per IP
// with the given burst, sweeping entries idle longer than
// cleanupInterval.
func NewIPRateLimiter(perSecond float64, burst int, cleanupInterval time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		limiters:        make(map[string]*ipLimiter),
		perSecond:       rate.Limit(perSecond),
		burst:           burst,
		cleanupInterval: cleanupInterval,
	}
}

func (rl *IPRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now

	for addr, e := range rl.limiters {
		if now.Sub(e.lastSeen) > rl.cleanupInterval {
			delete(rl.limiters, addr)
		}
	}

	return entry.limiter.Allow()
}

// Middleware rejects requests over the per-IP rate with 429.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
