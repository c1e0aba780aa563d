package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/search"
)

// SearchHandler serves the multi-modal search endpoint and caption
// export.
type SearchHandler struct {
	deps Deps
}

func NewSearchHandler(deps Deps) *SearchHandler {
	return &SearchHandler{deps: deps}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.deps.Planner.Search(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ExportCaptions renders a video's transcript as an SRT or VTT file.
func (h *SearchHandler) ExportCaptions(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = search.CaptionFormatSRT
	}

	if _, err := h.deps.Store.GetMedia(r.Context(), videoID); errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "media not found")
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, err := search.ExportCaptions(r.Context(), h.deps.Store, videoID, format)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "application/x-subrip"
	ext := "srt"
	if format == search.CaptionFormatVTT {
		contentType = "text/vtt"
		ext = "vtt"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+videoID+`.`+ext+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
