// Package httpapp exposes the engine over HTTP: job admission, progress
// streaming via server-sent events, result lookup, and cancellation.
package httpapp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/engine"
	"github.com/nmoreras/trackfetch/internal/httpapp/dto"
	"github.com/nmoreras/trackfetch/internal/logger"
)

// Service is the engine surface the handlers need. Satisfied by
// *engine.Engine.
type Service interface {
	StartResolution(trackID string, opts engine.Options) (domain.Job, error)
	GetJob(jobID string) (domain.Job, error)
	GetResult(jobID string) (domain.Job, error)
	StreamProgress(jobID string) (<-chan domain.ProgressEvent, func(), error)
	Cancel(jobID string) error
}

type Handler struct {
	Service Service
	Logger  *logger.Logger
}

func NewHandler(svc Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Service: svc,
		Logger:  log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/downloads", h.StartDownload)
		r.Get("/downloads/{id}", h.GetDownload)
		r.Get("/downloads/{id}/events", h.StreamEvents)
		r.Delete("/downloads/{id}", h.CancelDownload)
		r.Get("/health", h.Health)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Warn("Response encode failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// StartDownload admits a resolution job. A duplicate request inside the
// result TTL returns the existing job with 200; a new admission returns 202.
func (h *Handler) StartDownload(w http.ResponseWriter, r *http.Request) {
	var req dto.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeError(w, http.StatusBadRequest, dto.ToResponse(errs))
		return
	}

	job, err := h.Service.StartResolution(req.TrackID, engine.Options{
		PreferSyncedLyrics: req.PreferSyncedLyrics,
		HighQualityCover:   req.HighQualityCover,
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusAccepted
	if job.Cached || job.Status.Terminal() {
		status = http.StatusOK
	}
	h.writeJSON(w, status, dto.FromJob(job))
}

// GetDownload returns the job in any state; the response carries the status
// so clients can tell "still running" from "done".
func (h *Handler) GetDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.Service.GetJob(id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, dto.FromJob(job))
}

// StreamEvents streams the job's progress as server-sent events until the
// terminal event or client disconnect.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, cancel, err := h.Service.StreamProgress(id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// CancelDownload requests cooperative cancellation.
func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Service.Cancel(id); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
