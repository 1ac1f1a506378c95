package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nmoreras/trackfetch/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port           string
	DBPath         string
	DownloadsDir   string
	CacheDir       string
	CatalogURL     string
	SearchURL      string
	RetrievalURL   string
	DeezerURL      string
	LastFMURL      string
	LastFMAPIKey   string
	MusicBrainzURL string
	LRCLibURL      string
	GeniusURL      string
	GeniusToken    string
	SubdirTemplate string
	LogLevel       string
	LogFormat      string

	MaxConcurrentJobs int
	ScoreThreshold    int
	HighConfidence    int
	MaxSearchResults  int

	ResultTTL     time.Duration
	FileRetention time.Duration
	JobRetention  time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	home, _ := os.UserHomeDir()
	defaultDownload := filepath.Join(home, "Music/trackfetch")
	defaultCache := filepath.Join(os.TempDir(), "trackfetch")

	return &Config{
		Port:           getEnv("PORT", constants.DefaultPort),
		DBPath:         getEnv("DB_PATH", constants.DefaultDBPath),
		DownloadsDir:   getEnv("DOWNLOADS_DIR", defaultDownload),
		CacheDir:       getEnv("CACHE_DIR", defaultCache),
		CatalogURL:     getEnv("CATALOG_URL", "http://127.0.0.1:8000"),
		SearchURL:      getEnv("SEARCH_URL", "http://127.0.0.1:8001"),
		RetrievalURL:   getEnv("RETRIEVAL_URL", "http://127.0.0.1:8002"),
		DeezerURL:      getEnv("DEEZER_URL", "https://api.deezer.com"),
		LastFMURL:      getEnv("LASTFM_URL", "https://ws.audioscrobbler.com/2.0"),
		LastFMAPIKey:   getEnv("LASTFM_API_KEY", ""),
		MusicBrainzURL: getEnv("MUSICBRAINZ_URL", "https://musicbrainz.org/ws/2"),
		LRCLibURL:      getEnv("LRCLIB_URL", "https://lrclib.net/api"),
		GeniusURL:      getEnv("GENIUS_URL", "https://api.genius.com"),
		GeniusToken:    getEnv("GENIUS_TOKEN", ""),
		SubdirTemplate: getEnv("SUBDIR_TEMPLATE", constants.DefaultSubdirTemplate),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),

		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", constants.DefaultConcurrency),
		ScoreThreshold:    getEnvInt("SCORE_THRESHOLD", constants.DefaultScoreThreshold),
		HighConfidence:    getEnvInt("HIGH_CONFIDENCE", constants.DefaultHighConfidence),
		MaxSearchResults:  getEnvInt("MAX_SEARCH_RESULTS", constants.DefaultMaxSearchResults),

		ResultTTL:     getEnvDuration("RESULT_TTL", constants.DefaultResultTTL),
		FileRetention: getEnvDuration("FILE_RETENTION", constants.DefaultFileRetention),
		JobRetention:  getEnvDuration("JOB_RETENTION", constants.DefaultJobRetention),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}
	if c.DownloadsDir == "" {
		errors = append(errors, "DOWNLOADS_DIR cannot be empty")
	}
	if c.CacheDir == "" {
		errors = append(errors, "CACHE_DIR cannot be empty")
	}

	for name, raw := range map[string]string{
		"CATALOG_URL":     c.CatalogURL,
		"SEARCH_URL":      c.SearchURL,
		"RETRIEVAL_URL":   c.RetrievalURL,
		"DEEZER_URL":      c.DeezerURL,
		"LASTFM_URL":      c.LastFMURL,
		"MUSICBRAINZ_URL": c.MusicBrainzURL,
		"LRCLIB_URL":      c.LRCLibURL,
		"GENIUS_URL":      c.GeniusURL,
	} {
		if raw == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", name))
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %s", name, raw))
		}
	}

	if c.MaxConcurrentJobs < 1 {
		errors = append(errors, fmt.Sprintf("MAX_CONCURRENT_JOBS must be at least 1, got: %d", c.MaxConcurrentJobs))
	}
	if c.ScoreThreshold <= 0 {
		errors = append(errors, fmt.Sprintf("SCORE_THRESHOLD must be positive, got: %d", c.ScoreThreshold))
	}
	if c.HighConfidence < c.ScoreThreshold {
		errors = append(errors, fmt.Sprintf("HIGH_CONFIDENCE (%d) must not be below SCORE_THRESHOLD (%d)", c.HighConfidence, c.ScoreThreshold))
	}
	if c.MaxSearchResults < 1 {
		errors = append(errors, fmt.Sprintf("MAX_SEARCH_RESULTS must be at least 1, got: %d", c.MaxSearchResults))
	}
	if c.FileRetention > c.ResultTTL {
		errors = append(errors, "FILE_RETENTION must not exceed RESULT_TTL")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
