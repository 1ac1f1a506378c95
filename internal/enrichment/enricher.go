// Package enrichment gathers supplementary metadata (images, genres,
// identifiers, stats) from independent providers. Providers are best-effort:
// a failed or slow provider contributes nothing and never fails the job.
package enrichment

import (
	"context"
	"time"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/logger"
	"github.com/nmoreras/trackfetch/internal/ratelimit"
)

// Enricher is one external enrichment provider.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, artist, title string) (*domain.Enrichment, error)
}

// FanOut runs every enricher concurrently, each behind its own rate-limiter
// gate and its own timeout, and merges whatever came back. A slow provider
// cannot block a fast one from contributing.
type FanOut struct {
	enrichers []Enricher
	limiter   *ratelimit.PerProvider
	timeout   time.Duration
	logger    *logger.Logger
}

// NewFanOut creates a fan-out over the given enrichers.
func NewFanOut(enrichers []Enricher, limiter *ratelimit.PerProvider, timeout time.Duration, log *logger.Logger) *FanOut {
	if log == nil {
		log = logger.Default()
	}
	return &FanOut{
		enrichers: enrichers,
		limiter:   limiter,
		timeout:   timeout,
		logger:    log.WithComponent("enrichment"),
	}
}

// Enrich joins all providers and returns the merged partial record. Merge
// order follows registration order so the result is deterministic regardless
// of which provider finished first.
func (f *FanOut) Enrich(ctx context.Context, artist, title string) *domain.Enrichment {
	results := make([]*domain.Enrichment, len(f.enrichers))
	done := make(chan int, len(f.enrichers))

	for i, e := range f.enrichers {
		go func(i int, e Enricher) {
			defer func() { done <- i }()
			log := f.logger.WithProvider(e.Name())

			sub, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			if f.limiter != nil {
				if err := f.limiter.Acquire(sub, e.Name()); err != nil {
					log.Debug("Enricher rate-limit wait aborted", "error", err)
					return
				}
			}

			part, err := e.Enrich(sub, artist, title)
			if err != nil {
				log.Warn("Enricher failed, fields omitted", "error", err)
				return
			}
			results[i] = part
		}(i, e)
	}

	for range f.enrichers {
		<-done
	}

	merged := &domain.Enrichment{}
	for _, part := range results {
		merged.Merge(part)
	}
	return merged
}
