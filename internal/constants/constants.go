// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort           = "8080"
	DefaultDBPath         = "trackfetch.db"
	DefaultConcurrency    = 4
	DefaultHTTPTimeout    = 5 * time.Minute
	ImageHTTPTimeout      = 30 * time.Second
	DefaultRetryCount     = 3
	DefaultRetryBase      = 1 * time.Second
	DefaultSubdirTemplate = "{{.Artist}}/{{.Album}}/{{.Track}} - {{.Title}}"
)

// Retention and cache windows. The result TTL outlives the file retention on
// purpose: a cache hit whose file is gone triggers a fresh resolution.
const (
	DefaultResultTTL     = 24 * time.Hour
	DefaultFileRetention = 60 * time.Minute
	DefaultJobRetention  = 24 * time.Hour
	DefaultProviderCache = 7 * 24 * time.Hour
	ReapInterval         = 5 * time.Minute
)

// Provider rate limits (minimum interval between calls)
const (
	MusicBrainzInterval = 1100 * time.Millisecond
	DeezerInterval      = 200 * time.Millisecond
	LastFMInterval      = 250 * time.Millisecond
	LRCLibInterval      = 200 * time.Millisecond
)

// Enrichment fan-out
const (
	EnricherTimeout = 15 * time.Second
)

// Search and scoring defaults. The point values are tunable configuration;
// only their relative ordering is load-bearing.
const (
	DefaultMaxSearchResults   = 10
	DefaultScoreThreshold     = 100
	DefaultHighConfidence     = 180
	DefaultTitleMatchMinimum  = 0.8
	DefaultTitleMatchPenalty  = -100
	DefaultTitleMatchBonus    = 50
	DefaultArtistBonus        = 20
	DefaultDurationBonus      = 30
	DefaultDurationToleranceS = 10
	DefaultKeywordBonus       = 15
	DefaultOfficialBonus      = 10
	DefaultBadKeywordPenalty  = -50
	DefaultTitleSimilarityMax = 50
	DefaultArtistSimilarity   = 30
)

// MIME Types
const (
	MimeTypeM4A  = "audio/mp4"
	MimeTypeMP3  = "audio/mpeg"
	MimeTypeFLAC = "audio/flac"
	MimeTypeJPEG = "image/jpeg"
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtMP4  = ".mp4"
	ExtM4A  = ".m4a"
	ExtJPG  = ".jpg"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)
