package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/logger"
	"github.com/nmoreras/trackfetch/internal/storage"
	"github.com/nmoreras/trackfetch/internal/store"
	"github.com/nmoreras/trackfetch/internal/tagging"
)

// run executes the full pipeline for one admitted job. It owns the job's
// lifecycle from slot acquisition to the terminal event.
func (e *Engine) run(st *jobState, dedupKey string) {
	defer e.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st.mu.Lock()
	st.cancel = cancel
	alreadyCancelled := st.cancelled
	st.mu.Unlock()

	if alreadyCancelled {
		e.fail(st, dedupKey, domain.NewResolutionError(domain.ErrorKindCancelled, "", domain.ErrJobCancelled), "")
		return
	}

	// Queue for a slot; the job stays pending until one frees up.
	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		e.fail(st, dedupKey, domain.NewResolutionError(domain.ErrorKindCancelled, "", domain.ErrJobCancelled), "")
		return
	}
	defer func() { <-e.slots }()

	log := e.logger.WithJob(st.job.ID, st.job.Target.ID)
	log.Info("Job started")

	st.mu.Lock()
	st.job.Status = domain.JobStatusRunning
	st.mu.Unlock()

	tempPath, err := e.execute(ctx, st, log)
	if err != nil {
		e.fail(st, dedupKey, err, tempPath)
		return
	}
	e.succeed(st, dedupKey, log)
}

// execute walks the stages in order, returning the current temp artifact
// path alongside any error so the caller can reclaim it.
func (e *Engine) execute(ctx context.Context, st *jobState, log *logger.Logger) (string, error) {
	opts := st.opts

	// metadata
	if err := e.enterStage(st, domain.StageMetadata, "Fetching track metadata"); err != nil {
		return "", err
	}
	target, err := e.catalog.GetTrack(ctx, st.job.Target.ID)
	if err != nil {
		return "", stageErr(domain.StageMetadata, err)
	}
	st.mu.Lock()
	st.job.Target = *target
	st.mu.Unlock()

	// enrich
	if err := e.enterStage(st, domain.StageEnrich, "Gathering enrichment"); err != nil {
		return "", err
	}
	enrichment := e.enricher.Enrich(ctx, target.PrimaryArtist(), target.Title)
	st.mu.Lock()
	st.job.Enrichment = enrichment
	st.mu.Unlock()

	// resolve
	if err := e.enterStage(st, domain.StageResolve, "Resolving audio source"); err != nil {
		return "", err
	}
	result, err := e.resolver.Resolve(ctx, *target)
	if err != nil {
		return "", stageErr(domain.StageResolve, err)
	}
	st.mu.Lock()
	st.score = result
	st.mu.Unlock()
	log.WithStage(string(domain.StageResolve)).Info("Source resolved", "url", result.Candidate.URL, "score", result.Score)

	// fetch
	if err := e.enterStage(st, domain.StageFetch, "Downloading audio"); err != nil {
		return "", err
	}
	if err := storage.EnsureDir(e.cfg.CacheDir); err != nil {
		return "", stageErr(domain.StageFetch, err)
	}
	tempPath, err := e.downloader.Download(ctx, result.Candidate.URL, e.cfg.CacheDir, func(frac float64) {
		span := stageRanges[domain.StageFetch]
		e.publishProgress(st, span[0]+int(frac*float64(span[1]-span[0])), domain.StageFetch, "")
	})
	if err != nil {
		return "", err
	}

	// transcode
	if err := e.enterStage(st, domain.StageTranscode, "Preparing container"); err != nil {
		return tempPath, err
	}
	tempPath, err = e.transcode(ctx, tempPath)
	if err != nil {
		return tempPath, err
	}

	// lyrics (best-effort)
	if err := e.enterStage(st, domain.StageLyrics, "Fetching lyrics"); err != nil {
		return tempPath, err
	}
	lyr := e.lyrics.Fetch(ctx, *target, opts.PreferSyncedLyrics)

	// tag
	if err := e.enterStage(st, domain.StageTag, "Writing tags"); err != nil {
		return tempPath, err
	}
	coverArt := e.fetchCoverArt(ctx, target, enrichment, opts, log)
	meta := tagging.NewMetadata(*target, enrichment, lyr, coverArt)
	if err := e.tag(ctx, tempPath, meta); err != nil {
		return tempPath, stageErr(domain.StageTag, err)
	}

	// organize
	if err := e.enterStage(st, domain.StageOrganize, "Organizing into library"); err != nil {
		return tempPath, err
	}
	finalPath, err := storage.BuildPath(e.cfg.DownloadsDir, e.cfg.SubdirTemplate,
		storage.NewPathTemplateData(*target), filepath.Ext(tempPath))
	if err != nil {
		return tempPath, stageErr(domain.StageOrganize, err)
	}
	if err := storage.EnsureDir(filepath.Dir(finalPath)); err != nil {
		return tempPath, stageErr(domain.StageOrganize, err)
	}
	if err := storage.MoveFile(tempPath, finalPath); err != nil {
		return tempPath, stageErr(domain.StageOrganize, err)
	}

	st.mu.Lock()
	st.job.FilePath = finalPath
	st.mu.Unlock()
	return "", nil
}

// fetchCoverArt prefers the enriched high-resolution cover and falls back to
// the catalog's album art URL. Failure to fetch art never fails the job.
func (e *Engine) fetchCoverArt(ctx context.Context, target *domain.TargetTrack, enrichment *domain.Enrichment, opts Options, log *logger.Logger) []byte {
	url := target.AlbumArtURL
	if opts.HighQualityCover && enrichment != nil && enrichment.CoverURL != "" {
		url = enrichment.CoverURL
	} else if url == "" && enrichment != nil {
		url = enrichment.CoverURL
	}

	data, err := e.image(ctx, url)
	if err != nil {
		log.WithStage(string(domain.StageTag)).Warn("Cover art download failed", "url", url, "error", err)
		return nil
	}
	return data
}

// enterStage is the cancellation checkpoint between stages. It publishes the
// stage's opening progress event when the job is still live.
func (e *Engine) enterStage(st *jobState, stage domain.Stage, msg string) error {
	if st.isCancelled() {
		return domain.NewResolutionError(domain.ErrorKindCancelled, stage, domain.ErrJobCancelled)
	}
	span := stageRanges[stage]
	st.mu.Lock()
	st.job.Stage = stage
	st.mu.Unlock()
	e.publishProgress(st, span[0], stage, msg)
	return nil
}

// publishProgress emits a progress event, never letting the percentage move
// backwards. Repeated identical percentages inside a stage are suppressed so
// the fetch callback doesn't flood subscribers.
func (e *Engine) publishProgress(st *jobState, percent int, stage domain.Stage, msg string) {
	st.mu.Lock()
	if percent < st.job.Progress {
		percent = st.job.Progress
	}
	if percent == st.job.Progress && msg == "" && stage == st.job.Stage && percent != 0 {
		st.mu.Unlock()
		return
	}
	st.job.Progress = percent
	jobID := st.job.ID
	st.mu.Unlock()

	e.broadcaster.Publish(domain.ProgressEvent{
		JobID:   jobID,
		Percent: percent,
		Stage:   stage,
		Message: msg,
	})
}

func (e *Engine) succeed(st *jobState, dedupKey string, log *logger.Logger) {
	st.mu.Lock()
	st.job.Status = domain.JobStatusSucceeded
	st.job.Stage = domain.StageOrganize
	st.job.Progress = 100
	st.job.FinishedAt = time.Now()
	snap := st.job
	st.mu.Unlock()

	e.cache.Set(dedupKey, &cacheEntry{jobID: snap.ID, filePath: snap.FilePath}, e.cfg.ResultTTL)
	e.scheduleFileRemoval(snap.FilePath, log)
	e.record(snap, st)

	e.broadcaster.Publish(domain.ProgressEvent{
		JobID:    snap.ID,
		Percent:  100,
		Stage:    domain.StageOrganize,
		Message:  "Done",
		Terminal: true,
		Status:   domain.JobStatusSucceeded,
	})
	log.Info("Job succeeded", "path", snap.FilePath)
}

func (e *Engine) fail(st *jobState, dedupKey string, err error, tempPath string) {
	kind := domain.KindOf(err)
	status := domain.JobStatusFailed
	if kind == domain.ErrorKindCancelled {
		status = domain.JobStatusCancelled
	}

	st.mu.Lock()
	st.job.Status = status
	st.job.Err = err
	st.job.FinishedAt = time.Now()
	snap := st.job
	st.mu.Unlock()

	// Failed and cancelled runs never count as cached results.
	e.cache.Delete(dedupKey)

	if tempPath != "" {
		if rmErr := os.Remove(tempPath); rmErr == nil {
			e.logger.Debug("Removed partial artifact", "path", tempPath)
		}
	}

	e.record(snap, st)

	e.broadcaster.Publish(domain.ProgressEvent{
		JobID:    snap.ID,
		Percent:  snap.Progress,
		Stage:    snap.Stage,
		Terminal: true,
		Status:   status,
		ErrKind:  string(kind),
		Err:      err.Error(),
	})
	e.logger.WithJob(snap.ID, snap.Target.ID).Warn("Job finished with error", "kind", string(kind), "error", err)
}

// scheduleFileRemoval deletes the library file once the retention window
// passes. The dedup entry may outlive the file; admission treats a missing
// file as a cache miss.
func (e *Engine) scheduleFileRemoval(path string, log *logger.Logger) {
	if path == "" || e.fileRetention <= 0 {
		return
	}
	time.AfterFunc(e.fileRetention, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("Retention removal failed", "path", path, "error", err)
			return
		}
		storage.PruneEmptyDirs(filepath.Dir(path), e.cfg.DownloadsDir)
		log.Info("Retention removed file", "path", path)
	})
}

func (e *Engine) record(snap domain.Job, st *jobState) {
	if e.history == nil {
		return
	}

	st.mu.Lock()
	score := st.score
	st.mu.Unlock()

	rec := &store.JobRecord{
		ID:        snap.ID,
		TrackID:   snap.Target.ID,
		Title:     snap.Target.Title,
		Artist:    snap.Target.PrimaryArtist(),
		Status:    string(snap.Status),
		Score:     score.Score,
		SourceURL: score.Candidate.URL,
		FilePath:  snap.FilePath,
		CreatedAt: snap.CreatedAt,
	}
	if !snap.FinishedAt.IsZero() {
		finished := snap.FinishedAt
		rec.FinishedAt = &finished
	}
	if snap.Err != nil {
		rec.ErrorKind = string(domain.KindOf(snap.Err))
		rec.Error = snap.Err.Error()
	}
	if err := e.history.RecordJob(rec); err != nil {
		e.logger.Warn("History write failed", "job_id", snap.ID, "error", err)
	}
}

// stageErr stamps an unclassified error with the stage it surfaced in,
// leaving already-classified errors untouched.
func stageErr(stage domain.Stage, err error) error {
	var re *domain.ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return domain.NewResolutionError(domain.KindOf(err), stage, err)
}
