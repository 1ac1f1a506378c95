package enrichment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nmoreras/trackfetch/internal/domain"
)

// Cache is the keyed blob store the cached decorator persists through.
type Cache interface {
	GetCache(key string) ([]byte, error)
	SetCache(key string, data []byte, ttl time.Duration) error
}

// CachedEnricher wraps an Enricher with a persistent response cache so
// repeat resolutions of the same artist/title don't re-hit rate-limited
// providers. Negative results are cached too.
type CachedEnricher struct {
	enricher Enricher
	cache    Cache
	ttl      time.Duration
}

var _ Enricher = (*CachedEnricher)(nil)

func NewCachedEnricher(e Enricher, cache Cache, ttl time.Duration) *CachedEnricher {
	return &CachedEnricher{enricher: e, cache: cache, ttl: ttl}
}

func (c *CachedEnricher) Name() string { return c.enricher.Name() }

type cachedEnrichment struct {
	Enrichment *domain.Enrichment `json:"enrichment"`
	NotFound   bool               `json:"not_found"`
}

func (c *CachedEnricher) Enrich(ctx context.Context, artist, title string) (*domain.Enrichment, error) {
	key := "enrich:" + c.Name() + ":" + artist + "|" + title

	if data, err := c.cache.GetCache(key); err == nil && data != nil {
		var cached cachedEnrichment
		if unmarshalErr := json.Unmarshal(data, &cached); unmarshalErr == nil {
			if cached.NotFound {
				return nil, nil
			}
			return cached.Enrichment, nil
		}
	}

	enr, err := c.enricher.Enrich(ctx, artist, title)
	if err != nil {
		return nil, err
	}

	if data, marshalErr := json.Marshal(cachedEnrichment{Enrichment: enr, NotFound: enr == nil}); marshalErr == nil {
		_ = c.cache.SetCache(key, data, c.ttl)
	}
	return enr, nil
}
