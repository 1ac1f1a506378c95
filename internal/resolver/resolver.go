// Package resolver picks the correct audio source for a target track among
// ambiguous search results. It owns the multi-pass query strategy; the
// per-candidate arithmetic lives in the scoring package.
package resolver

import (
	"context"
	"fmt"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/logger"
	"github.com/nmoreras/trackfetch/internal/ratelimit"
	"github.com/nmoreras/trackfetch/internal/scoring"
	"github.com/nmoreras/trackfetch/internal/search"
)

// ProviderSearch is the rate-limiter bucket shared by all resolution passes.
const ProviderSearch = "search"

// Resolver resolves a target track to its best-scoring candidate.
type Resolver struct {
	search         search.Client
	scorer         *scoring.Scorer
	limiter        *ratelimit.PerProvider
	maxResults     int
	highConfidence int
	logger         *logger.Logger
}

// New creates a Resolver. limiter may be nil when the caller gates the search
// backend some other way.
func New(sc search.Client, scorer *scoring.Scorer, limiter *ratelimit.PerProvider, maxResults, highConfidence int, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		search:         sc,
		scorer:         scorer,
		limiter:        limiter,
		maxResults:     maxResults,
		highConfidence: highConfidence,
		logger:         log.WithComponent("resolver"),
	}
}

// Resolve runs up to three query passes (title only, title+artist,
// artist+title) and returns the best candidate that clears the acceptance
// threshold. A pass reaching the high-confidence score stops the search
// early. No acceptable candidate is a content outcome (ErrNoMatch), distinct
// from the search backend being unreachable, which is an infrastructure
// error the pipeline may retry.
func (r *Resolver) Resolve(ctx context.Context, target domain.TargetTrack) (domain.ScoreResult, error) {
	artist := target.PrimaryArtist()
	queries := []string{
		BuildQuery(target.Title, ""),
		BuildQuery(target.Title, artist),
		BuildQuery(artist, target.Title),
	}

	var best domain.ScoreResult
	found := false
	var infraErr error
	passesRun := 0

	for pass, query := range queries {
		if query == "" {
			continue
		}

		if r.limiter != nil {
			if err := r.limiter.Acquire(ctx, ProviderSearch); err != nil {
				return domain.ScoreResult{}, err
			}
		}

		candidates, err := r.search.Search(ctx, query, r.maxResults)
		if err != nil {
			if ctx.Err() != nil {
				return domain.ScoreResult{}, ctx.Err()
			}
			r.logger.Warn("Search pass failed", "pass", pass+1, "query", query, "error", err)
			infraErr = err
			continue
		}
		passesRun++

		sr, ok := r.scorer.SelectBest(target, candidates)
		if !ok {
			r.logger.Debug("No candidate cleared threshold", "pass", pass+1, "query", query, "candidates", len(candidates))
			continue
		}

		r.logger.Debug("Pass best candidate",
			"pass", pass+1,
			"title", sr.Candidate.Title,
			"score", sr.Score,
		)

		if !found || sr.Score > best.Score {
			best = sr
			found = true
		}
		if sr.Score >= r.highConfidence {
			r.logger.Info("High-confidence match, stopping search",
				"title", sr.Candidate.Title, "score", sr.Score)
			return sr, nil
		}
	}

	if found {
		r.logger.Info("Resolved candidate", "title", best.Candidate.Title, "score", best.Score)
		return best, nil
	}

	// Every pass failing on infrastructure means we never actually looked at
	// content; surface the retriable error rather than a false no-match.
	if passesRun == 0 && infraErr != nil {
		return domain.ScoreResult{}, infraErr
	}

	return domain.ScoreResult{}, domain.NewResolutionError(
		domain.ErrorKindContentMismatch,
		domain.StageResolve,
		fmt.Errorf("%w for %q by %q", domain.ErrNoMatch, target.Title, artist),
	)
}
