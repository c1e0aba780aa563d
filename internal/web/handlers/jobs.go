package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

// JobsHandler controls the indexing scheduler.
type JobsHandler struct {
	deps Deps
}

func NewJobsHandler(deps Deps) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// Start admits queued media up to the concurrency cap. An optional
// limit bounds how many items this call may admit.
func (h *JobsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Limit <= 0 {
		req.Limit = math.MaxInt32
	}
	started, err := h.deps.Scheduler.StartQueued(r.Context(), req.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"started": started})
}

func (h *JobsHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.deps.Scheduler.Pause()
	respondJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (h *JobsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.deps.Scheduler.Resume(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// Status reports the live jobs plus queue depth by media status.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	running, err := h.deps.Store.RunningJobs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if running == nil {
		running = []catalog.Job{}
	}
	counts, err := h.deps.Store.CountMediaByStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"paused":          h.deps.Scheduler.Paused(),
		"live":            h.deps.Scheduler.Live(),
		"jobs":            running,
		"media_by_status": counts,
	})
}

// Cancel stops a running job, or marks one cancelled when its worker
// already exited.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := h.deps.Store.GetJob(r.Context(), jobID)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch job.Status {
	case catalog.StatusDone, catalog.StatusFailed, catalog.StatusCancelled:
		respondError(w, http.StatusConflict, "job already finished")
		return
	}

	if !h.deps.Scheduler.Stop(job.VideoID) {
		// Worker is gone; settle the rows directly.
		if err := h.deps.Store.SetMediaStatus(r.Context(), job.VideoID, catalog.StatusCancelled, 0); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := h.deps.Store.FinishJob(r.Context(), jobID, catalog.StatusCancelled, nil, nil); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": catalog.StatusCancelled,
	})
}

// Clear removes finished job rows.
func (h *JobsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Store.ClearJobs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cleared": n})
}
