package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"sardis/observability"
)

// RateLimitConfig throttles agent payment traffic. MaxRequests per
// WindowSeconds, keyed by the authenticated agent (client IP for anonymous
// callers).
type RateLimitConfig struct {
	Enabled       bool
	MaxRequests   int
	WindowSeconds int
}

const maxTrackedCallers = 8192

// RateLimiter applies a token bucket per caller.
type RateLimiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter builds a limiter from config; defaults are 60 requests per
// 60 seconds.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	return &RateLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

// Middleware rejects callers above their budget with 429.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.Allow(callerKey(r)) {
				observability.Gateway().RecordThrottle(r.URL.Path)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allow reports whether the caller still has budget in the current window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxTrackedCallers {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		perSecond := float64(rl.cfg.MaxRequests) / float64(rl.cfg.WindowSeconds)
		limiter = rate.NewLimiter(rate.Limit(perSecond), rl.cfg.MaxRequests)
		rl.limiters[key] = limiter
	}
	return limiter.Allow()
}

func callerKey(r *http.Request) string {
	if agent := AgentID(r.Context()); agent != "" {
		return "agent:" + agent
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return "ip:" + ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := forwarded
		if comma := strings.IndexByte(forwarded, ','); comma > 0 {
			first = forwarded[:comma]
		}
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return "ip:" + parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
