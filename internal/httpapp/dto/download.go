package dto

import (
	"strings"
	"time"

	"github.com/nmoreras/trackfetch/internal/domain"
)

// DownloadRequest is the POST /api/downloads payload.
type DownloadRequest struct {
	TrackID            string `json:"track_id"`
	PreferSyncedLyrics bool   `json:"prefer_synced_lyrics"`
	HighQualityCover   bool   `json:"high_quality_cover"`
}

const maxTrackIDLen = 128

func (r *DownloadRequest) Validate() []ValidationError {
	var errs []ValidationError

	id := strings.TrimSpace(r.TrackID)
	if id == "" {
		errs = append(errs, ValidationError{Field: "track_id", Message: "is required"})
	} else if len(id) > maxTrackIDLen {
		errs = append(errs, ValidationError{Field: "track_id", Message: "is too long"})
	} else if strings.ContainsAny(id, " \t\n/") {
		errs = append(errs, ValidationError{Field: "track_id", Message: "contains invalid characters"})
	}
	r.TrackID = id

	return errs
}

// JobResponse is the public shape of a job in API responses.
type JobResponse struct {
	ID         string             `json:"id"`
	TrackID    string             `json:"track_id"`
	Title      string             `json:"title,omitempty"`
	Artist     string             `json:"artist,omitempty"`
	Status     string             `json:"status"`
	Stage      string             `json:"stage,omitempty"`
	Progress   int                `json:"progress"`
	FilePath   string             `json:"file_path,omitempty"`
	Cached     bool               `json:"cached,omitempty"`
	Enrichment *domain.Enrichment `json:"enrichment,omitempty"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

func FromJob(job domain.Job) JobResponse {
	resp := JobResponse{
		ID:         job.ID,
		TrackID:    job.Target.ID,
		Title:      job.Target.Title,
		Artist:     job.Target.PrimaryArtist(),
		Status:     string(job.Status),
		Stage:      string(job.Stage),
		Progress:   job.Progress,
		FilePath:   job.FilePath,
		Cached:     job.Cached,
		Enrichment: job.Enrichment,
		CreatedAt:  job.CreatedAt,
	}
	if !job.FinishedAt.IsZero() {
		finished := job.FinishedAt
		resp.FinishedAt = &finished
	}
	if job.Err != nil {
		resp.ErrorKind = string(domain.KindOf(job.Err))
		resp.Error = job.Err.Error()
	}
	return resp
}
