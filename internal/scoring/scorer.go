// Package scoring ranks external search candidates against a target track.
// Score is a pure function: no I/O, no clock, no randomness. A malformed
// candidate simply scores low.
package scoring

import (
	"strings"

	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/domain"
)

// Config holds the tunable scoring weights. The exact point values carry no
// meaning beyond their relative ordering; the acceptance threshold is the
// only hard gate.
type Config struct {
	TitleMatchMinimum   float64
	TitleMatchPenalty   int
	TitleMatchBonus     int
	ArtistBonus         int
	DurationBonus       int
	DurationTolerance   int // seconds
	KeywordBonus        int
	OfficialBonus       int
	BadKeywordPenalty   int
	TitleSimilarityMax  int
	ArtistSimilarityMax int
	Threshold           int
}

// DefaultConfig returns the stock weights.
func DefaultConfig() Config {
	return Config{
		TitleMatchMinimum:   constants.DefaultTitleMatchMinimum,
		TitleMatchPenalty:   constants.DefaultTitleMatchPenalty,
		TitleMatchBonus:     constants.DefaultTitleMatchBonus,
		ArtistBonus:         constants.DefaultArtistBonus,
		DurationBonus:       constants.DefaultDurationBonus,
		DurationTolerance:   constants.DefaultDurationToleranceS,
		KeywordBonus:        constants.DefaultKeywordBonus,
		OfficialBonus:       constants.DefaultOfficialBonus,
		BadKeywordPenalty:   constants.DefaultBadKeywordPenalty,
		TitleSimilarityMax:  constants.DefaultTitleSimilarityMax,
		ArtistSimilarityMax: constants.DefaultArtistSimilarity,
		Threshold:           constants.DefaultScoreThreshold,
	}
}

// Quality-indicating keyword groups. Phrases within one group overlap
// (e.g. "official audio" contains "audio"), so a group contributes its bonus
// at most once; groups are independent and additive.
var keywordGroups = []struct {
	name    string
	phrases []string
}{
	{name: "audio", phrases: []string{"official audio", "audio"}},
	{name: "lyrics", phrases: []string{"lyric video", "lyrics"}},
}

// Keywords marking altered versions the caller did not ask for.
var badKeywords = []string{
	"sing-along", "sing along", "singalong",
	"karaoke", "instrumental", "remix",
	"cover", "nightcore", "slowed", "reverb",
	"8d audio", "bass boost", "sped up",
}

// Scorer scores candidates with a fixed Config.
type Scorer struct {
	cfg Config
}

// New creates a Scorer.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Threshold returns the acceptance threshold.
func (s *Scorer) Threshold() int { return s.cfg.Threshold }

// Score computes the match score of candidate against target, with a labeled
// breakdown of every contribution.
func (s *Scorer) Score(target domain.TargetTrack, c domain.Candidate) domain.ScoreResult {
	title := strings.ToLower(c.Title)
	uploader := strings.ToLower(c.Uploader)
	targetTitle := strings.ToLower(target.Title)
	targetArtist := strings.ToLower(strings.Join(target.Artists, ", "))

	res := domain.ScoreResult{Candidate: c}
	add := func(label string, delta int) {
		if delta == 0 {
			return
		}
		res.Score += delta
		res.Reasons = append(res.Reasons, domain.ScoreReason{Label: label, Delta: delta})
	}

	// Title word overlap. Below the minimum fraction the candidate is most
	// likely a different track and the penalty must dominate every bonus.
	words := tokenize(targetTitle)
	if len(words) > 0 {
		matched := 0
		for _, w := range words {
			if strings.Contains(title, w) {
				matched++
			}
		}
		fraction := float64(matched) / float64(len(words))
		if fraction < s.cfg.TitleMatchMinimum {
			add("title_match", s.cfg.TitleMatchPenalty)
		} else {
			add("title_match", int(fraction*float64(s.cfg.TitleMatchBonus)))
		}
	}

	// Artist presence. Uploader naming is inconsistent, so absence is never
	// penalized.
	for _, artist := range target.Artists {
		a := strings.ToLower(artist)
		if a == "" {
			continue
		}
		if strings.Contains(title, a) || strings.Contains(uploader, a) {
			add("artist_present", s.cfg.ArtistBonus)
			break
		}
	}

	add("duration", s.durationBonus(target.Duration, c.Duration))
	add("popularity", popularityBonus(c.ViewCount))

	for _, group := range keywordGroups {
		for _, kw := range group.phrases {
			if strings.Contains(title, kw) {
				add("keyword_"+group.name, s.cfg.KeywordBonus)
				break
			}
		}
	}

	if strings.Contains(title, "official") &&
		!strings.Contains(title, "music video") && !strings.Contains(title, "official video") {
		add("official_non_video", s.cfg.OfficialBonus)
	}

	for _, kw := range badKeywords {
		if strings.Contains(title, kw) {
			add("bad_keyword:"+kw, s.cfg.BadKeywordPenalty)
		}
	}

	add("title_similarity", int(similarity(targetTitle, title)*float64(s.cfg.TitleSimilarityMax)))

	artistSim := similarity(targetArtist, uploader)
	if inTitle := similarity(targetArtist, title); inTitle > artistSim {
		artistSim = inTitle
	}
	add("artist_similarity", int(artistSim*float64(s.cfg.ArtistSimilarityMax)))

	return res
}

// SelectBest scores every candidate, discards those below the threshold, and
// picks the maximum. Ties break toward the smallest duration difference, then
// first-seen order.
func (s *Scorer) SelectBest(target domain.TargetTrack, candidates []domain.Candidate) (domain.ScoreResult, bool) {
	var best domain.ScoreResult
	found := false

	for _, c := range candidates {
		sr := s.Score(target, c)
		if sr.Score < s.cfg.Threshold {
			continue
		}
		if !found {
			best = sr
			found = true
			continue
		}
		switch {
		case sr.Score > best.Score:
			best = sr
		case sr.Score == best.Score &&
			durationDiff(target, sr.Candidate) < durationDiff(target, best.Candidate):
			best = sr
		}
	}
	return best, found
}

// durationBonus decays linearly from the full bonus at a perfect match to
// zero at the tolerance boundary. Absent duration data on either side is
// worth nothing but costs nothing.
func (s *Scorer) durationBonus(expected, actual int) int {
	if expected <= 0 || actual <= 0 {
		return 0
	}
	diff := expected - actual
	if diff < 0 {
		diff = -diff
	}
	if diff >= s.cfg.DurationTolerance {
		return 0
	}
	return int(float64(s.cfg.DurationBonus) * (1 - float64(diff)/float64(s.cfg.DurationTolerance)))
}

// popularityBonus buckets the view count into tiers. Sources that legitimately
// omit the signal get zero, never a penalty.
func popularityBonus(views int64) int {
	switch {
	case views >= 1_000_000:
		return 15
	case views >= 100_000:
		return 10
	case views >= 10_000:
		return 5
	default:
		return 0
	}
}

func durationDiff(target domain.TargetTrack, c domain.Candidate) int {
	d := target.Duration - c.Duration
	if d < 0 {
		return -d
	}
	return d
}
