package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireEnforcesInterval(t *testing.T) {
	p := New(map[string]time.Duration{"deezer": 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Acquire(ctx, "deezer"); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	// First call is free; the next two each wait one interval.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("3 acquires took %v, want >= ~100ms", elapsed)
	}
}

func TestUnknownProviderIsUnlimited(t *testing.T) {
	p := New(map[string]time.Duration{"deezer": time.Hour})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := p.Acquire(ctx, "never-registered"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("unlimited provider blocked for %v", elapsed)
	}
}

func TestProvidersDoNotShareBuckets(t *testing.T) {
	p := New(map[string]time.Duration{
		"slow": time.Hour,
		"fast": 0,
	})
	ctx := context.Background()

	if err := p.Acquire(ctx, "slow"); err != nil {
		t.Fatalf("Acquire slow: %v", err)
	}
	start := time.Now()
	if err := p.Acquire(ctx, "fast"); err != nil {
		t.Fatalf("Acquire fast: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("fast provider queued behind slow one for %v", elapsed)
	}
}

func TestAcquireReturnsWhenContextCancelledWhileQueued(t *testing.T) {
	p := New(map[string]time.Duration{"slow": time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	// Drain the single token so the next Acquire has to queue.
	if err := p.Acquire(ctx, "slow"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Acquire(ctx, "slow") }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("queued Acquire returned nil after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("queued Acquire did not return after cancellation")
	}
}

func TestSetIntervalReplacesLimiter(t *testing.T) {
	p := New(map[string]time.Duration{"deezer": time.Hour})
	ctx := context.Background()

	if err := p.Acquire(ctx, "deezer"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.SetInterval("deezer", 0)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := p.Acquire(ctx, "deezer"); err != nil {
			t.Fatalf("Acquire after SetInterval: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("unlimited limiter blocked for %v", elapsed)
	}
}
