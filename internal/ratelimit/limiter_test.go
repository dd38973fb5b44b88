package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBurstThenDeny(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 3, Enabled: true})

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d within burst must be allowed", i+1)
		}
	}
	if limiter.Allow() {
		t.Error("request beyond burst must be denied")
	}
}

func TestDisabledAlwaysAllows(t *testing.T) {
	limiter := NewLimiter(Disabled())
	for i := 0; i < 100; i++ {
		if !limiter.Allow() {
			t.Fatal("disabled limiter must always allow")
		}
	}
	if limiter.WaitTime() != 0 {
		t.Error("disabled limiter must report zero wait")
	}
}

func TestRefillOverTime(t *testing.T) {
	// 600 rpm = 10 tokens/second, so one token refills in ~100ms.
	limiter := NewLimiter(Config{RequestsPerMinute: 600, BurstSize: 1, Enabled: true})

	if !limiter.Allow() {
		t.Fatal("first request must pass")
	}
	if limiter.Allow() {
		t.Fatal("bucket must be empty")
	}

	time.Sleep(150 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("token must refill after the interval")
	}
}

func TestAcquireBlocksUntilToken(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerMinute: 600, BurstSize: 1, Enabled: true})
	limiter.Allow() // drain

	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("acquire returned after %s, expected it to wait for refill", elapsed)
	}
}

func TestAcquireCancellable(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerMinute: 1, BurstSize: 1, Enabled: true})
	limiter.Allow() // drain; next token is a minute away

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if err == nil {
		t.Fatal("acquire must fail when the context expires first")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("acquire must return promptly on cancellation")
	}
}

func TestRegistryPerProvider(t *testing.T) {
	registry := NewRegistry()

	a := registry.For("anthropic")
	b := registry.For("openai")
	if a == b {
		t.Error("providers must get distinct limiters")
	}
	if registry.For("anthropic") != a {
		t.Error("repeated lookups must return the same limiter")
	}
}

func TestForProviderPresets(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai", "google", "unknown"} {
		cfg := ForProvider(provider)
		if !cfg.Enabled || cfg.RequestsPerMinute <= 0 || cfg.BurstSize <= 0 {
			t.Errorf("preset for %s = %+v, want enabled with positive limits", provider, cfg)
		}
	}
}
