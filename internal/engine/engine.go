// Package engine orchestrates the resolution pipeline: admit a track
// request, walk it through the ordered stages, broadcast progress, and keep
// the dedup cache honest. Job state is in-memory and non-durable; only the
// terminal outcome is written to the history table.
package engine

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmoreras/trackfetch/internal/catalog"
	"github.com/nmoreras/trackfetch/internal/config"
	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/dedupe"
	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/fetch"
	"github.com/nmoreras/trackfetch/internal/logger"
	"github.com/nmoreras/trackfetch/internal/progress"
	"github.com/nmoreras/trackfetch/internal/store"
	"github.com/nmoreras/trackfetch/internal/tagging"
)

// Stage progress sub-ranges. Each stage owns [start, end) and the pipeline
// only ever moves forward.
var stageRanges = map[domain.Stage][2]int{
	domain.StageMetadata:  {0, 5},
	domain.StageEnrich:    {5, 20},
	domain.StageResolve:   {20, 30},
	domain.StageFetch:     {30, 70},
	domain.StageTranscode: {70, 75},
	domain.StageLyrics:    {75, 85},
	domain.StageTag:       {85, 95},
	domain.StageOrganize:  {95, 100},
}

// Resolver picks the audio source for a target track.
type Resolver interface {
	Resolve(ctx context.Context, target domain.TargetTrack) (domain.ScoreResult, error)
}

// Enricher is the merged enrichment fan-out.
type Enricher interface {
	Enrich(ctx context.Context, artist, title string) *domain.Enrichment
}

// Downloader streams the resolved audio into a temp file.
type Downloader interface {
	Download(ctx context.Context, sourceURL, destDir string, progress fetch.ProgressFunc) (string, error)
}

// LyricsFetcher walks the lyrics provider chain.
type LyricsFetcher interface {
	Fetch(ctx context.Context, target domain.TargetTrack, preferSynced bool) *domain.Lyrics
}

// History records terminal job outcomes. Satisfied by *store.DB.
type History interface {
	RecordJob(rec *store.JobRecord) error
	PruneJobs(olderThan time.Duration) (int64, error)
	PruneCache() (int64, error)
}

// TranscodeFunc converts a downloaded file into a taggable container.
type TranscodeFunc func(ctx context.Context, path string) (string, error)

// TagFunc writes metadata into the finished file.
type TagFunc func(ctx context.Context, path string, meta *tagging.Metadata) error

// ImageFunc fetches cover art bytes.
type ImageFunc func(ctx context.Context, url string) ([]byte, error)

// Options are the per-request knobs accepted at admission.
type Options struct {
	PreferSyncedLyrics bool
	HighQualityCover   bool
}

// cacheEntry maps a dedup key to the job serving it and, once succeeded,
// the library file it produced.
type cacheEntry struct {
	jobID    string
	filePath string
}

type jobState struct {
	mu        sync.Mutex
	job       domain.Job
	opts      Options
	score     domain.ScoreResult
	cancel    context.CancelFunc
	cancelled bool
}

func (s *jobState) snapshot() domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

func (s *jobState) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Engine owns all running jobs and the pipeline they execute.
type Engine struct {
	cfg         *config.Config
	catalog     catalog.Provider
	resolver    Resolver
	enricher    Enricher
	downloader  Downloader
	transcode   TranscodeFunc
	lyrics      LyricsFetcher
	tag         TagFunc
	image       ImageFunc
	history     History
	broadcaster *progress.Broadcaster
	cache       *dedupe.Cache[string, *cacheEntry]
	logger      *logger.Logger

	mu   sync.Mutex
	jobs map[string]*jobState

	slots chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup

	// overridable in tests so retention does not need wall-clock waits
	fileRetention time.Duration
}

// Deps carries the engine's collaborators.
type Deps struct {
	Catalog     catalog.Provider
	Resolver    Resolver
	Enricher    Enricher
	Downloader  Downloader
	Lyrics      LyricsFetcher
	History     History
	Broadcaster *progress.Broadcaster

	// Optional overrides; production wiring leaves these nil.
	Transcode TranscodeFunc
	Tag       TagFunc
	Image     ImageFunc
}

// New creates an Engine. Call Run to start the reaper and Shutdown to drain.
func New(cfg *config.Config, deps Deps, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	e := &Engine{
		cfg:           cfg,
		catalog:       deps.Catalog,
		resolver:      deps.Resolver,
		enricher:      deps.Enricher,
		downloader:    deps.Downloader,
		transcode:     deps.Transcode,
		lyrics:        deps.Lyrics,
		tag:           deps.Tag,
		image:         deps.Image,
		history:       deps.History,
		broadcaster:   deps.Broadcaster,
		cache:         dedupe.New[string, *cacheEntry](),
		logger:        log.WithComponent("engine"),
		jobs:          make(map[string]*jobState),
		slots:         make(chan struct{}, cfg.MaxConcurrentJobs),
		stop:          make(chan struct{}),
		fileRetention: cfg.FileRetention,
	}
	if e.broadcaster == nil {
		e.broadcaster = progress.NewBroadcaster()
	}
	if e.transcode == nil {
		e.transcode = fetch.Transcode
	}
	if e.tag == nil {
		e.tag = func(ctx context.Context, path string, meta *tagging.Metadata) error {
			return tagging.TagFile(ctx, path, meta)
		}
	}
	if e.image == nil {
		e.image = tagging.DownloadImage
	}
	return e
}

// Broadcaster exposes the progress hub for the HTTP layer.
func (e *Engine) Broadcaster() *progress.Broadcaster { return e.broadcaster }

// StartResolution admits a request for trackID. Concurrent requests for the
// same track share one job; a completed job inside the result TTL whose file
// still exists is returned immediately. The returned job is a snapshot.
func (e *Engine) StartResolution(trackID string, opts Options) (domain.Job, error) {
	if trackID == "" {
		return domain.Job{}, errors.New("track id is required")
	}

	for attempt := 0; attempt < 2; attempt++ {
		var st *jobState
		entry, isNew := e.cache.GetOrCreate(trackID, func() *cacheEntry {
			st = e.newJob(trackID, opts)
			return &cacheEntry{jobID: st.job.ID}
		})

		if isNew {
			e.wg.Add(1)
			go e.run(st, trackID)
			return st.snapshot(), nil
		}

		existing := e.getState(entry.jobID)
		if existing == nil {
			// Job already reaped but the cache entry lingered.
			e.cache.Delete(trackID)
			continue
		}

		snap := existing.snapshot()
		if snap.Status == domain.JobStatusSucceeded {
			if _, err := os.Stat(snap.FilePath); err != nil {
				// The retention sweep beat the cache TTL; resolve afresh.
				e.cache.Delete(trackID)
				continue
			}
			snap.Cached = true
			return snap, nil
		}
		return snap, nil
	}

	return domain.Job{}, errors.New("could not admit job")
}

func (e *Engine) newJob(trackID string, opts Options) *jobState {
	st := &jobState{
		job: domain.Job{
			ID:        uuid.New().String(),
			Target:    domain.TargetTrack{ID: trackID},
			Status:    domain.JobStatusPending,
			CreatedAt: time.Now(),
		},
		opts: opts,
	}
	e.mu.Lock()
	e.jobs[st.job.ID] = st
	e.mu.Unlock()
	return st
}

func (e *Engine) getState(jobID string) *jobState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jobs[jobID]
}

// GetJob returns a snapshot of the job in any state.
func (e *Engine) GetJob(jobID string) (domain.Job, error) {
	st := e.getState(jobID)
	if st == nil {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return st.snapshot(), nil
}

// GetResult returns the job once it is terminal: ErrNotReady while it is
// still running, the terminal error when it failed or was cancelled.
func (e *Engine) GetResult(jobID string) (domain.Job, error) {
	snap, err := e.GetJob(jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if !snap.Status.Terminal() {
		return snap, domain.ErrNotReady
	}
	if snap.Status != domain.JobStatusSucceeded {
		if snap.Err != nil {
			return snap, snap.Err
		}
		return snap, domain.ErrJobCancelled
	}
	return snap, nil
}

// StreamProgress subscribes to the job's event stream.
func (e *Engine) StreamProgress(jobID string) (<-chan domain.ProgressEvent, func(), error) {
	if e.getState(jobID) == nil {
		return nil, nil, domain.ErrJobNotFound
	}
	ch, cancel := e.broadcaster.Subscribe(jobID)
	return ch, cancel, nil
}

// Cancel requests cooperative cancellation. The pipeline stops at the next
// stage boundary; blocking calls inside the current stage are interrupted.
func (e *Engine) Cancel(jobID string) error {
	st := e.getState(jobID)
	if st == nil {
		return domain.ErrJobNotFound
	}

	st.mu.Lock()
	if st.job.Status.Terminal() {
		st.mu.Unlock()
		return nil
	}
	st.cancelled = true
	cancel := st.cancel
	st.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Run starts the background reaper. Blocks until Shutdown.
func (e *Engine) Run() {
	ticker := time.NewTicker(constants.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.reap()
		case <-e.stop:
			return
		}
	}
}

// Shutdown stops the reaper and waits for running jobs to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	close(e.stop)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reap evicts terminal jobs past the retention window, with their progress
// state, expired cache entries, and stale history rows.
func (e *Engine) reap() {
	cutoff := time.Now().Add(-e.cfg.JobRetention)

	e.mu.Lock()
	var evicted []string
	for id, st := range e.jobs {
		snap := st.snapshot()
		if snap.Status.Terminal() && snap.FinishedAt.Before(cutoff) {
			delete(e.jobs, id)
			evicted = append(evicted, id)
		}
	}
	e.mu.Unlock()

	for _, id := range evicted {
		e.broadcaster.Prune(id)
	}
	if n := e.cache.Purge(); n > 0 {
		e.logger.Debug("Purged expired cache entries", "count", n)
	}
	if e.history != nil {
		if _, err := e.history.PruneJobs(e.cfg.JobRetention); err != nil {
			e.logger.Warn("History prune failed", "error", err)
		}
		if _, err := e.history.PruneCache(); err != nil {
			e.logger.Warn("Provider cache prune failed", "error", err)
		}
	}
	if len(evicted) > 0 {
		e.logger.Info("Reaped terminal jobs", "count", len(evicted))
	}
}
