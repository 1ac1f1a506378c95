package domain

import (
	"time"
)

// TargetTrack is the catalog entry the caller wants resolved to an audio
// file. It is supplied once per job and never mutated.
type TargetTrack struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album"`
	Duration    int      `json:"duration"`
	TrackNumber int      `json:"track_number,omitempty"`
	DiscNumber  int      `json:"disc_number,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
	AlbumArtURL string   `json:"album_art_url,omitempty"`
}

// PrimaryArtist returns the first artist name or an empty string.
func (t *TargetTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Candidate is one externally discovered audio item considered as a possible
// match for a target. Candidates are produced and discarded within a single
// resolution call.
type Candidate struct {
	SourceID  string `json:"source_id"`
	Title     string `json:"title"`
	Uploader  string `json:"uploader"`
	Duration  int    `json:"duration"`
	ViewCount int64  `json:"view_count,omitempty"`
	URL       string `json:"url"`
}

// ScoreReason is one labeled contribution to a candidate's score.
type ScoreReason struct {
	Label string `json:"label"`
	Delta int    `json:"delta"`
}

// ScoreResult pairs a candidate with its score and the ordered list of
// contributions that produced it.
type ScoreResult struct {
	Candidate Candidate     `json:"candidate"`
	Score     int           `json:"score"`
	Reasons   []ScoreReason `json:"reasons"`
}

// JobStatus represents the lifecycle state of a resolution job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Stage is one ordered phase of the resolution pipeline.
type Stage string

const (
	StageMetadata  Stage = "metadata"
	StageEnrich    Stage = "enrich"
	StageResolve   Stage = "resolve"
	StageFetch     Stage = "fetch"
	StageTranscode Stage = "transcode"
	StageLyrics    Stage = "lyrics"
	StageTag       Stage = "tag"
	StageOrganize  Stage = "organize"
)

// Job is the mutable state of one resolution request. It is owned by the
// engine: only the stage currently executing mutates it, and it is frozen
// once terminal.
type Job struct {
	ID         string      `json:"id"`
	Target     TargetTrack `json:"target"`
	Status     JobStatus   `json:"status"`
	Stage      Stage       `json:"stage,omitempty"`
	Progress   int         `json:"progress"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
	Err        error       `json:"-"`
	FilePath   string      `json:"file_path,omitempty"`
	Cached     bool        `json:"cached,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt time.Time   `json:"finished_at,omitzero"`
}

// ProgressEvent is one ordered progress notification for a job.
type ProgressEvent struct {
	JobID    string    `json:"job_id"`
	Percent  int       `json:"percent"`
	Stage    Stage     `json:"stage"`
	Message  string    `json:"message,omitempty"`
	Terminal bool      `json:"terminal,omitempty"`
	Status   JobStatus `json:"status,omitempty"`
	ErrKind  string    `json:"err_kind,omitempty"`
	Err      string    `json:"error,omitempty"`
}

// Enrichment holds the merged partial records contributed by the enrichment
// providers. A provider that failed or timed out simply leaves its fields
// empty.
type Enrichment struct {
	CoverURL       string   `json:"cover_url,omitempty"`
	ArtistImageURL string   `json:"artist_image_url,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	ISRC           string   `json:"isrc,omitempty"`
	ArtistAliases  []string `json:"artist_aliases,omitempty"`
	PlayCount      int64    `json:"play_count,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

// Merge folds another partial enrichment into e. Earlier values win for
// scalar fields; list fields are appended with duplicates dropped.
func (e *Enrichment) Merge(other *Enrichment) {
	if other == nil {
		return
	}
	if e.CoverURL == "" {
		e.CoverURL = other.CoverURL
	}
	if e.ArtistImageURL == "" {
		e.ArtistImageURL = other.ArtistImageURL
	}
	if e.ISRC == "" {
		e.ISRC = other.ISRC
	}
	if e.PlayCount == 0 {
		e.PlayCount = other.PlayCount
	}
	e.Genres = appendUnique(e.Genres, other.Genres)
	e.ArtistAliases = appendUnique(e.ArtistAliases, other.ArtistAliases)
	e.Sources = appendUnique(e.Sources, other.Sources)
}

// Lyrics is the outcome of the lyrics-fetch stage.
type Lyrics struct {
	Text   string `json:"text"`
	Synced bool   `json:"synced"`
	Source string `json:"source"`
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}
