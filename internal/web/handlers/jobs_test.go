package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

func TestJobs_StatusAndPauseResume(t *testing.T) {
	deps := newDeps(t)
	h := NewJobsHandler(deps)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/jobs/status", nil))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	if body["paused"] != false {
		t.Fatal("scheduler should start unpaused")
	}

	rec = httptest.NewRecorder()
	h.Pause(rec, httptest.NewRequest(http.MethodPost, "/jobs/pause", nil))
	assertStatusCode(t, rec, http.StatusOK)

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/jobs/status", nil))
	if body := parseJSONResponse(t, rec); body["paused"] != true {
		t.Fatal("expected paused after pause")
	}

	rec = httptest.NewRecorder()
	h.Resume(rec, httptest.NewRequest(http.MethodPost, "/jobs/resume", nil))
	assertStatusCode(t, rec, http.StatusOK)
}

func TestJobs_CancelSettlesOrphanedJob(t *testing.T) {
	deps := newDeps(t)
	h := NewJobsHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	job := catalog.Job{JobID: "j-1", VideoID: "m-1", Status: catalog.StatusEmbedding}
	if err := deps.Store.CreateJob(ctx, &job); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	req := withChiParams(httptest.NewRequest(http.MethodDelete, "/jobs/j-1", nil),
		map[string]string{"job_id": "j-1"})
	h.Cancel(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	got, err := deps.Store.GetJob(ctx, "j-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != catalog.StatusCancelled {
		t.Fatalf("job status = %s, want CANCELLED", got.Status)
	}
	status, err := deps.Store.GetMediaStatus(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if status != catalog.StatusCancelled {
		t.Fatalf("media status = %s, want CANCELLED", status)
	}
}

func TestJobs_CancelFinished(t *testing.T) {
	deps := newDeps(t)
	h := NewJobsHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	job := catalog.Job{JobID: "j-1", VideoID: "m-1", Status: catalog.StatusEmbedding}
	if err := deps.Store.CreateJob(ctx, &job); err != nil {
		t.Fatal(err)
	}
	if err := deps.Store.FinishJob(ctx, "j-1", catalog.StatusDone, nil, nil); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	req := withChiParams(httptest.NewRequest(http.MethodDelete, "/jobs/j-1", nil),
		map[string]string{"job_id": "j-1"})
	h.Cancel(rec, req)
	assertStatusCode(t, rec, http.StatusConflict)
}

func TestJobs_CancelUnknown(t *testing.T) {
	deps := newDeps(t)
	h := NewJobsHandler(deps)

	rec := httptest.NewRecorder()
	req := withChiParams(httptest.NewRequest(http.MethodDelete, "/jobs/nope", nil),
		map[string]string{"job_id": "nope"})
	h.Cancel(rec, req)
	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestJobs_Clear(t *testing.T) {
	deps := newDeps(t)
	h := NewJobsHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	job := catalog.Job{JobID: "j-1", VideoID: "m-1", Status: catalog.StatusQueued}
	if err := deps.Store.CreateJob(ctx, &job); err != nil {
		t.Fatal(err)
	}
	if err := deps.Store.FinishJob(ctx, "j-1", catalog.StatusFailed, nil, nil); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.Clear(rec, httptest.NewRequest(http.MethodPost, "/jobs/clear", nil))
	assertStatusCode(t, rec, http.StatusOK)
	if body := parseJSONResponse(t, rec); body["cleared"] != float64(1) {
		t.Fatalf("cleared = %v, want 1", body["cleared"])
	}
}
