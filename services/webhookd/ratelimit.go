package webhookd

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the fallback deliveries-per-window cap for a
	// subscription that does not set its own.
	DefaultRateLimit = 60

	defaultRateWindow = time.Minute
	defaultRateTTL    = 5 * time.Minute
	defaultRateCap    = 4096
)

// RateLimiter bounds deliveries per subscription across rolling windows while
// keeping the tracked set bounded. Safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]rateWindow

	window time.Duration
	ttl    time.Duration
	cap    int
}

type rateWindow struct {
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateWindow overrides the rolling window duration.
func WithRateWindow(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.window = d
		}
	}
}

// WithRateTTL overrides how long idle entries stay resident.
func WithRateTTL(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.ttl = d
		}
	}
}

// WithRateCap caps the number of tracked subscriptions.
func WithRateCap(n int) RateLimiterOption {
	return func(rl *RateLimiter) {
		if n > 0 {
			rl.cap = n
		}
	}
}

// NewRateLimiter constructs a rate limiter with the platform defaults.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]rateWindow),
		window:  defaultRateWindow,
		ttl:     defaultRateTTL,
		cap:     defaultRateCap,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow reports whether the subscription may deliver now within limit.
// Limits <= 0 fall back to DefaultRateLimit.
func (rl *RateLimiter) Allow(subscriptionID string, limit int, now time.Time) bool {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.pruneLocked(now)

	state := rl.windows[subscriptionID]
	if state.windowStart.IsZero() || now.Sub(state.windowStart) >= rl.window {
		state.windowStart = now
		state.count = 0
	}
	if state.count >= limit {
		state.lastSeen = now
		rl.windows[subscriptionID] = state
		return false
	}
	state.count++
	state.lastSeen = now
	rl.windows[subscriptionID] = state
	return true
}

// Len returns the number of tracked subscriptions. For tests.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	for id, state := range rl.windows {
		if now.Sub(state.lastSeen) > rl.ttl {
			delete(rl.windows, id)
		}
	}
	if len(rl.windows) <= rl.cap {
		return
	}
	type entry struct {
		id       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(rl.windows))
	for id, state := range rl.windows {
		entries = append(entries, entry{id: id, lastSeen: state.lastSeen})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastSeen.Before(entries[j].lastSeen)
	})
	excess := len(rl.windows) - rl.cap
	for i := 0; i < excess && i < len(entries); i++ {
		delete(rl.windows, entries[i].id)
	}
}
