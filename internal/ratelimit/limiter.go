// Package ratelimit provides per-key token bucket rate limiting for the MCP
// tools and the HTTP API.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimited is returned (wrapped) when a request exceeds its limit.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter keeps one token bucket per key, each with the configured rate
// and burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	nowFunc func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// A new key starts with a full bucket.
func NewLimiter(r float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(r),
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token
// if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Prune drops buckets idle for longer than idle. The HTTP API keys buckets
// by client address, so without pruning the map grows with every client.
// Returns the number of buckets removed.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters for the
// MCP server. Simulations are the most expensive calls since they may fetch
// RSS feeds and call the translation API.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"foresight_simulate":  NewLimiter(20.0/60.0, 5), // 20/minute, burst 5
		"foresight_battle":    NewLimiter(20.0/60.0, 5), // 20/minute, burst 5
		"foresight_step":      NewLimiter(1.0, 10),      // 60/minute, burst 10
		"foresight_field":     NewLimiter(6.0/60.0, 2),  // 6/minute, burst 2
		"foresight_scenarios": NewLimiter(1.0, 10),      // 60/minute, burst 10
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error wrapping ErrLimited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, toolName)
	}

	return nil
}
