package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nmoreras/trackfetch/internal/catalog"
	"github.com/nmoreras/trackfetch/internal/config"
	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/engine"
	"github.com/nmoreras/trackfetch/internal/enrichment"
	"github.com/nmoreras/trackfetch/internal/fetch"
	"github.com/nmoreras/trackfetch/internal/httpapp"
	"github.com/nmoreras/trackfetch/internal/logger"
	"github.com/nmoreras/trackfetch/internal/lyrics"
	"github.com/nmoreras/trackfetch/internal/progress"
	"github.com/nmoreras/trackfetch/internal/ratelimit"
	"github.com/nmoreras/trackfetch/internal/resolver"
	"github.com/nmoreras/trackfetch/internal/scoring"
	"github.com/nmoreras/trackfetch/internal/search"
	"github.com/nmoreras/trackfetch/internal/store"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Per-provider rate limits; search shares one bucket across all passes.
	limiter := ratelimit.New(map[string]time.Duration{
		resolver.ProviderSearch: constants.DeezerInterval,
		"deezer":                constants.DeezerInterval,
		"musicbrainz":           constants.MusicBrainzInterval,
		"lastfm":                constants.LastFMInterval,
		lyrics.ProviderLRCLib:   constants.LRCLibInterval,
	})

	// Collaborator clients
	catalogClient := catalog.NewHTTPProvider(cfg.CatalogURL)
	searchClient := search.NewHTTPClient(cfg.SearchURL)
	downloader := fetch.NewDownloader(cfg.RetrievalURL, appLogger)

	enrichers := []enrichment.Enricher{
		enrichment.NewDeezer(cfg.DeezerURL),
		enrichment.NewCachedEnricher(enrichment.NewMusicBrainz(cfg.MusicBrainzURL), db, constants.DefaultProviderCache),
		enrichment.NewLastFM(cfg.LastFMURL, cfg.LastFMAPIKey),
	}
	fanOut := enrichment.NewFanOut(enrichers, limiter, constants.EnricherTimeout, appLogger)

	lyricsFetcher := lyrics.NewFetcher(
		lyrics.NewLRCLib(cfg.LRCLibURL),
		lyrics.NewGenius(cfg.GeniusURL, cfg.GeniusToken),
		limiter, appLogger,
	)

	scoringCfg := scoring.DefaultConfig()
	scoringCfg.Threshold = cfg.ScoreThreshold
	scorer := scoring.New(scoringCfg)
	res := resolver.New(searchClient, scorer, limiter, cfg.MaxSearchResults, cfg.HighConfidence, appLogger)

	// Engine
	eng := engine.New(cfg, engine.Deps{
		Catalog:     catalogClient,
		Resolver:    res,
		Enricher:    fanOut,
		Downloader:  downloader,
		Lyrics:      lyricsFetcher,
		History:     db,
		Broadcaster: progress.NewBroadcaster(),
	}, appLogger)
	go eng.Run()

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := httpapp.NewHandler(eng, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := eng.Shutdown(ctx); err != nil {
		appLogger.Warn("Jobs still running at shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
