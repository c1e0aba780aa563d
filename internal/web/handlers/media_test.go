package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

func TestMedia_ListEmpty(t *testing.T) {
	deps := newDeps(t)
	h := NewMediaHandler(deps)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/media", nil))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	if body["total"] != float64(0) {
		t.Fatalf("total = %v, want 0", body["total"])
	}
}

func TestMedia_FavoriteAndTags(t *testing.T) {
	deps := newDeps(t)
	h := NewMediaHandler(deps)
	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)

	rec := httptest.NewRecorder()
	req := withChiParams(httptest.NewRequest(http.MethodPost, "/media/m-1/favorite", nil),
		map[string]string{"id": "m-1"})
	h.SetFavorite(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	rec = httptest.NewRecorder()
	req = withChiParams(jsonRequest(t, http.MethodPost, "/media/m-1/tags",
		map[string]string{"tag": "holiday"}), map[string]string{"id": "m-1"})
	h.AddTag(rec, req)
	assertStatusCode(t, rec, http.StatusCreated)

	rec = httptest.NewRecorder()
	req = withChiParams(httptest.NewRequest(http.MethodGet, "/media/m-1", nil),
		map[string]string{"id": "m-1"})
	h.Get(rec, req)
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	if body["favorite"] != true {
		t.Fatal("expected favorite to be set")
	}
	tags, _ := body["tags"].([]any)
	if len(tags) != 1 || tags[0] != "holiday" {
		t.Fatalf("tags = %v, want [holiday]", body["tags"])
	}

	// Filtered listing sees the tagged favorite.
	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/media?favorites=true&tag=holiday", nil))
	body = parseJSONResponse(t, rec)
	if body["total"] != float64(1) {
		t.Fatalf("filtered total = %v, want 1", body["total"])
	}

	rec = httptest.NewRecorder()
	req = withChiParams(httptest.NewRequest(http.MethodDelete, "/media/m-1/tags/holiday", nil),
		map[string]string{"id": "m-1", "tag": "holiday"})
	h.RemoveTag(rec, req)
	assertStatusCode(t, rec, http.StatusOK)
}

func TestMedia_RetryFailed(t *testing.T) {
	deps := newDeps(t)
	h := NewMediaHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	seedMedia(t, deps, "m-2", catalog.MediaTypeVideo)
	if err := deps.Store.MarkMediaFailed(ctx, "m-1", "ffmpeg_error", "boom"); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.RetryFailed(rec, httptest.NewRequest(http.MethodPost, "/videos/retry-failed/all", nil))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	if body["requeued"] != float64(1) {
		t.Fatalf("requeued = %v, want 1", body["requeued"])
	}

	m, err := deps.Store.GetMedia(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != catalog.StatusQueued || m.ErrorCode != nil {
		t.Fatalf("media after retry = %s / %v, want QUEUED with no error", m.Status, m.ErrorCode)
	}
}

func TestMedia_RetryUnknown(t *testing.T) {
	deps := newDeps(t)
	h := NewMediaHandler(deps)

	rec := httptest.NewRecorder()
	req := withChiParams(httptest.NewRequest(http.MethodPost, "/videos/nope/retry", nil),
		map[string]string{"id": "nope"})
	h.Retry(rec, req)
	assertStatusCode(t, rec, http.StatusNotFound)
}
