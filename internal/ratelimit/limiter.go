// Package ratelimit provides per-provider token-bucket rate limiting for LLM
// requests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures a provider rate limit.
type Config struct {
	// RequestsPerMinute is the sustained request rate. Zero or less uses 60.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	// BurstSize is the maximum number of requests allowed in a burst.
	BurstSize int `yaml:"burst_size"`
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		BurstSize:         10,
		Enabled:           true,
	}
}

// Disabled returns a configuration that admits every request.
func Disabled() Config {
	return Config{Enabled: false}
}

// ForProvider returns the preset limit for a known provider.
func ForProvider(provider string) Config {
	switch provider {
	case "anthropic":
		return Config{RequestsPerMinute: 50, BurstSize: 10, Enabled: true}
	case "openai":
		return Config{RequestsPerMinute: 60, BurstSize: 20, Enabled: true}
	case "google":
		return Config{RequestsPerMinute: 60, BurstSize: 15, Enabled: true}
	default:
		return DefaultConfig()
	}
}

// Limiter implements token bucket rate limiting for a single provider.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	enabled    bool
}

// NewLimiter creates a limiter from the given configuration.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.BurstSize <= 0 {
		config.BurstSize = int(config.RequestsPerMinute / 6)
		if config.BurstSize < 1 {
			config.BurstSize = 1
		}
	}

	return &Limiter{
		tokens:     float64(config.BurstSize),
		maxTokens:  float64(config.BurstSize),
		refillRate: config.RequestsPerMinute / 60.0,
		lastRefill: time.Now(),
		enabled:    config.Enabled,
	}
}

// Allow consumes a token if one is available.
func (l *Limiter) Allow() bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or the context is cancelled.
// This is the loop's suspension point before every LLM call.
func (l *Limiter) Acquire(ctx context.Context) error {
	if !l.enabled {
		return nil
	}

	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := l.waitTimeLocked()
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill adds tokens based on time elapsed (must be called with lock held).
func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
}

// waitTimeLocked returns how long until a token would be available.
// Must be called with lock held, after refill.
func (l *Limiter) waitTimeLocked() time.Duration {
	if l.tokens >= 1 {
		return 0
	}
	needed := 1 - l.tokens
	seconds := needed / l.refillRate
	return time.Duration(seconds * float64(time.Second))
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// WaitTime returns how long to wait before a request would be allowed.
func (l *Limiter) WaitTime() time.Duration {
	if !l.enabled {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.waitTimeLocked()
}

// Registry holds one limiter per provider, process-wide.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// For returns the limiter for a provider, creating it from the provider
// preset on first use.
func (r *Registry) For(provider string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limiters[provider]; ok {
		return limiter
	}
	limiter := NewLimiter(ForProvider(provider))
	r.limiters[provider] = limiter
	return limiter
}

// Set installs a limiter for a provider, replacing any existing one.
func (r *Registry) Set(provider string, limiter *Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[provider] = limiter
}

// Reset drops all limiters.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters = make(map[string]*Limiter)
}

var (
	globalMu       sync.Mutex
	globalRegistry *Registry
)

// Global returns the process-wide limiter registry, initializing it on first
// use.
func Global() *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewRegistry()
	}
	return globalRegistry
}

// ResetGlobal clears the process-wide registry.
func ResetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRegistry = nil
}
