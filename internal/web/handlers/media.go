package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

// MediaHandler serves the media listing, per-item detail, favorites,
// tags and the video derived-data endpoints.
type MediaHandler struct {
	deps Deps
}

func NewMediaHandler(deps Deps) *MediaHandler {
	return &MediaHandler{deps: deps}
}

func (h *MediaHandler) filterFromQuery(r *http.Request) catalog.MediaFilter {
	q := r.URL.Query()
	return catalog.MediaFilter{
		LibraryID:             q.Get("library_id"),
		MediaType:             q.Get("type"),
		Status:                q.Get("status"),
		Tag:                   q.Get("tag"),
		FavoritesOnly:         q.Get("favorites") == "true" || q.Get("favorites") == "1",
		IncludeLiveComponents: q.Get("include_live_components") == "true" || q.Get("include_live_components") == "1",
		Limit:                 queryInt(r, "limit", 100),
		Offset:                queryInt(r, "offset", 0),
	}
}

func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.deps.Store.ListMedia(r.Context(), h.filterFromQuery(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []catalog.Media{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"media": items, "total": total})
}

// ListVideos is the media listing pinned to videos.
func (h *MediaHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	f := h.filterFromQuery(r)
	f.MediaType = catalog.MediaTypeVideo
	items, total, err := h.deps.Store.ListMedia(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []catalog.Media{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"videos": items, "total": total})
}

func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.Store.GetMedia(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	favorite, err := h.deps.Store.IsMediaFavorite(r.Context(), m.MediaID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tags, err := h.deps.Store.MediaTags(r.Context(), m.MediaID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tags == nil {
		tags = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"media":    m,
		"favorite": favorite,
		"tags":     tags,
	})
}

func (h *MediaHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Store.SetMediaFavorite(r.Context(), id, true); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"media_id": id, "favorite": true})
}

func (h *MediaHandler) ClearFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Store.SetMediaFavorite(r.Context(), id, false); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"media_id": id, "favorite": false})
}

func (h *MediaHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Tag == "" {
		respondError(w, http.StatusBadRequest, "tag is required")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.deps.Store.AddMediaTag(r.Context(), id, req.Tag); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"media_id": id, "tag": req.Tag})
}

func (h *MediaHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tag := chi.URLParam(r, "tag")
	if err := h.deps.Store.RemoveMediaTag(r.Context(), id, tag); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// AllTags lists every tag with its usage count.
func (h *MediaHandler) AllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.deps.Store.AllTags(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (h *MediaHandler) Frames(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	frames, err := h.deps.Store.FramesForVideo(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if frames == nil {
		frames = []catalog.Frame{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"video_id": id, "frames": frames})
}

func (h *MediaHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.deps.Store.GetMedia(r.Context(), id); errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "media not found")
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	meta, err := h.deps.Store.MediaMetadata(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"video_id": id, "metadata": meta})
}

// Retry requeues one failed or cancelled item.
func (h *MediaHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.deps.Store.GetMedia(r.Context(), id); errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "media not found")
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.deps.Store.RequeueMedia(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"media_id": id, "status": catalog.StatusQueued})
}

// RetryFailed requeues every FAILED item at once.
func (h *MediaHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Store.RequeueFailed(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"requeued": n})
}
