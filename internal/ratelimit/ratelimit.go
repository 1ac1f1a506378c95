// Package ratelimit gates calls to external providers, one limiter per
// provider. Enrichment and search share the same registry so concurrent jobs
// targeting one provider queue behind a single gate.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerProvider holds one token-bucket limiter per named provider.
type PerProvider struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	defaults map[string]time.Duration
}

// New creates a registry. intervals maps provider name to the minimum
// inter-call interval; unknown providers acquired later are unlimited.
func New(intervals map[string]time.Duration) *PerProvider {
	p := &PerProvider{
		limiters: make(map[string]*rate.Limiter),
		defaults: make(map[string]time.Duration, len(intervals)),
	}
	for name, interval := range intervals {
		p.defaults[name] = interval
	}
	return p
}

// Acquire blocks until the provider's limiter grants a slot or ctx is done.
// Callers that cannot wait cancel their context while queued.
func (p *PerProvider) Acquire(ctx context.Context, provider string) error {
	if err := p.limiter(provider).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", provider, err)
	}
	return nil
}

// SetInterval installs or replaces the limiter for a provider.
func (p *PerProvider) SetInterval(provider string, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiters[provider] = newLimiter(interval)
	p.defaults[provider] = interval
}

func (p *PerProvider) limiter(provider string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[provider]; ok {
		return l
	}
	l := newLimiter(p.defaults[provider])
	p.limiters[provider] = l
	return l
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
