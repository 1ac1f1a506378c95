package httpapp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/engine"
	"github.com/nmoreras/trackfetch/internal/httpapp/dto"
)

type mockService struct {
	job       domain.Job
	startErr  error
	getErr    error
	cancelErr error
	events    []domain.ProgressEvent

	startedWith string
	opts        engine.Options
	cancelled   string
}

func (m *mockService) StartResolution(trackID string, opts engine.Options) (domain.Job, error) {
	m.startedWith = trackID
	m.opts = opts
	return m.job, m.startErr
}

func (m *mockService) GetJob(jobID string) (domain.Job, error) {
	return m.job, m.getErr
}

func (m *mockService) GetResult(jobID string) (domain.Job, error) {
	return m.job, m.getErr
}

func (m *mockService) StreamProgress(jobID string) (<-chan domain.ProgressEvent, func(), error) {
	if m.getErr != nil {
		return nil, nil, m.getErr
	}
	ch := make(chan domain.ProgressEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, func() {}, nil
}

func (m *mockService) Cancel(jobID string) error {
	m.cancelled = jobID
	return m.cancelErr
}

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, nil).RegisterRoutes(r)
	return r
}

func runningJob() domain.Job {
	return domain.Job{
		ID:        "job-1",
		Target:    domain.TargetTrack{ID: "trk-1", Title: "Mr. Brightside", Artists: []string{"The Killers"}},
		Status:    domain.JobStatusRunning,
		Stage:     domain.StageFetch,
		Progress:  42,
		CreatedAt: time.Now(),
	}
}

func TestStartDownloadAccepted(t *testing.T) {
	svc := &mockService{job: runningJob()}
	router := newTestRouter(svc)

	body := `{"track_id":"trk-1","prefer_synced_lyrics":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if svc.startedWith != "trk-1" {
		t.Errorf("engine admitted %q", svc.startedWith)
	}
	if !svc.opts.PreferSyncedLyrics {
		t.Error("prefer_synced_lyrics not passed through")
	}

	var resp dto.JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "job-1" || resp.Status != "running" {
		t.Errorf("response = %+v", resp)
	}
}

func TestStartDownloadCachedReturns200(t *testing.T) {
	job := runningJob()
	job.Status = domain.JobStatusSucceeded
	job.Cached = true
	job.FilePath = "/music/file.m4a"
	svc := &mockService{job: job}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader(`{"track_id":"trk-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp dto.JobResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Cached {
		t.Error("cached flag missing")
	}
}

func TestStartDownloadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing track_id", `{}`},
		{"blank track_id", `{"track_id":"   "}`},
		{"track_id with slash", `{"track_id":"a/b"}`},
		{"oversized track_id", `{"track_id":"` + strings.Repeat("x", 200) + `"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{job: runningJob()}
			router := newTestRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/downloads", bytes.NewReader([]byte(tc.body)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if svc.startedWith != "" {
				t.Errorf("invalid request reached the engine: %q", svc.startedWith)
			}
		})
	}
}

func TestGetDownload(t *testing.T) {
	svc := &mockService{job: runningJob()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp dto.JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Progress != 42 || resp.Stage != "fetch" {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetDownloadNotFound(t *testing.T) {
	svc := &mockService{getErr: domain.ErrJobNotFound}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStreamEvents(t *testing.T) {
	svc := &mockService{
		job: runningJob(),
		events: []domain.ProgressEvent{
			{JobID: "job-1", Percent: 30, Stage: domain.StageResolve},
			{JobID: "job-1", Percent: 100, Stage: domain.StageOrganize, Terminal: true, Status: domain.JobStatusSucceeded},
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/job-1/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	chunks := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	if len(chunks) != 2 {
		t.Fatalf("got %d SSE frames: %q", len(chunks), rec.Body.String())
	}

	var last domain.ProgressEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(chunks[1], "data: ")), &last); err != nil {
		t.Fatalf("decode last frame: %v", err)
	}
	if !last.Terminal || last.Percent != 100 {
		t.Errorf("last frame = %+v", last)
	}
}

func TestStreamEventsUnknownJob(t *testing.T) {
	svc := &mockService{getErr: domain.ErrJobNotFound}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/missing/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelDownload(t *testing.T) {
	svc := &mockService{job: runningJob()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/downloads/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.cancelled != "job-1" {
		t.Errorf("cancelled %q", svc.cancelled)
	}
}

func TestCancelDownloadNotFound(t *testing.T) {
	svc := &mockService{cancelErr: domain.ErrJobNotFound}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/downloads/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestFailedJobResponseCarriesErrorKind(t *testing.T) {
	job := runningJob()
	job.Status = domain.JobStatusFailed
	job.Err = domain.NewResolutionError(domain.ErrorKindContentMismatch, domain.StageResolve, domain.ErrNoMatch)
	svc := &mockService{job: job}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/downloads/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp dto.JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ErrorKind != string(domain.ErrorKindContentMismatch) {
		t.Errorf("ErrorKind = %q", resp.ErrorKind)
	}
	if resp.Error == "" {
		t.Error("error message missing")
	}
}
