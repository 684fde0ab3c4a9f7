package auth

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fretwork/herald/settings"
)

// RequestLogger logs one line per request: method, path, remote, duration.
func RequestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Printf("%s %s from %s in %s", r.Method, r.URL.Path, clientIP(r), time.Since(start))
		})
	}
}

// RateLimiter enforces a per-IP request budget. Disabled config returns
// a pass-through.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	enabled  bool

	failedMu    sync.Mutex
	failedAuths map[string]int
	failedLimit int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter from the api.rate_limiting settings.
func NewRateLimiter(cfg settings.APIConfig) *RateLimiter {
	rl := &RateLimiter{
		visitors:    make(map[string]*visitor),
		failedAuths: make(map[string]int),
		enabled:     cfg.RateLimiting.Enabled,
		failedLimit: cfg.RateLimiting.FailedAuthLimit,
	}
	perMinute := cfg.RateLimiting.MaxRequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	rl.limit = rate.Limit(float64(perMinute) / 60.0)
	rl.burst = perMinute
	return rl
}

// Middleware rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.enabled && !rl.allow(clientIP(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	// Opportunistic sweep of idle entries.
	if len(rl.visitors) > 1024 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for k, vv := range rl.visitors {
			if vv.lastSeen.Before(cutoff) {
				delete(rl.visitors, k)
			}
		}
	}
	return v.limiter.Allow()
}

// RecordFailedAuth counts a failed token check against an IP.
func (rl *RateLimiter) RecordFailedAuth(ip string) {
	if rl.failedLimit <= 0 {
		return
	}
	rl.failedMu.Lock()
	rl.failedAuths[ip]++
	rl.failedMu.Unlock()
}

// TooManyFailures reports whether an IP has exceeded the failed-auth
// budget since the last reset.
func (rl *RateLimiter) TooManyFailures(ip string) bool {
	if rl.failedLimit <= 0 {
		return false
	}
	rl.failedMu.Lock()
	defer rl.failedMu.Unlock()
	return rl.failedAuths[ip] >= rl.failedLimit
}

// ResetFailures runs periodically so lockouts are temporary.
func (rl *RateLimiter) ResetFailures() {
	rl.failedMu.Lock()
	rl.failedAuths = make(map[string]int)
	rl.failedMu.Unlock()
}

// ClientIP is the peer address without the port, trusting no proxy
// headers.
func ClientIP(r *http.Request) string {
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
