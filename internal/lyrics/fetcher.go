package lyrics

import (
	"context"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/logger"
	"github.com/nmoreras/trackfetch/internal/ratelimit"
)

// Provider names used against the rate-limiter registry.
const (
	ProviderLRCLib = "lrclib"
	ProviderGenius = "genius"
)

// Fetcher walks the provider chain: LRCLIB synced, then Genius plain, then
// LRCLIB plain. First non-empty result wins. Every path is best-effort; a
// chain that comes up empty returns nil and the caller moves on.
type Fetcher struct {
	lrclib  *LRCLib
	genius  *Genius
	limiter *ratelimit.PerProvider
	logger  *logger.Logger
}

func NewFetcher(lrclib *LRCLib, genius *Genius, limiter *ratelimit.PerProvider, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Default()
	}
	return &Fetcher{
		lrclib:  lrclib,
		genius:  genius,
		limiter: limiter,
		logger:  log.WithComponent("lyrics"),
	}
}

// Fetch retrieves lyrics for the target. With preferSynced the LRC variant is
// taken when available; otherwise plain text is preferred and synced lyrics
// are only a last resort.
func (f *Fetcher) Fetch(ctx context.Context, target domain.TargetTrack, preferSynced bool) *domain.Lyrics {
	artist := target.PrimaryArtist()

	var lrc *lrclibResult
	if f.acquire(ctx, ProviderLRCLib) {
		res, err := f.lrclib.Get(ctx, artist, target.Title, target.Album, target.Duration)
		if err != nil {
			f.logger.Warn("LRCLIB lookup failed", "error", err)
		} else {
			lrc = res
		}
	}

	if preferSynced && lrc != nil && lrc.Synced != "" {
		return &domain.Lyrics{Text: lrc.Synced, Synced: true, Source: ProviderLRCLib}
	}

	if f.acquire(ctx, ProviderGenius) {
		plain, err := f.genius.Get(ctx, artist, target.Title)
		if err != nil {
			f.logger.Warn("Genius lookup failed", "error", err)
		} else if plain != "" {
			return &domain.Lyrics{Text: plain, Source: ProviderGenius}
		}
	}

	if lrc != nil {
		if lrc.Plain != "" {
			return &domain.Lyrics{Text: lrc.Plain, Source: ProviderLRCLib}
		}
		if lrc.Synced != "" {
			return &domain.Lyrics{Text: lrc.Synced, Synced: true, Source: ProviderLRCLib}
		}
	}

	f.logger.Debug("No lyrics found", "artist", artist, "title", target.Title)
	return nil
}

func (f *Fetcher) acquire(ctx context.Context, provider string) bool {
	if f.limiter == nil {
		return true
	}
	if err := f.limiter.Acquire(ctx, provider); err != nil {
		f.logger.Debug("Lyrics rate-limit wait aborted", "provider", provider, "error", err)
		return false
	}
	return true
}
