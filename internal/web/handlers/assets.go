package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// AssetsHandler serves thumbnail and face-crop files from the data
// directory.
type AssetsHandler struct {
	deps Deps
}

func NewAssetsHandler(deps Deps) *AssetsHandler {
	return &AssetsHandler{deps: deps}
}

func (h *AssetsHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.deps.Config.ThumbnailsDir())
}

func (h *AssetsHandler) FaceCrop(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.deps.Config.FacesDir())
}

// serve resolves <root>/<media_id>/<file> and refuses anything that
// escapes the root.
func (h *AssetsHandler) serve(w http.ResponseWriter, r *http.Request, root string) {
	mediaID := chi.URLParam(r, "media_id")
	file := chi.URLParam(r, "file")

	path := filepath.Join(root, mediaID, file)
	resolved, err := filepath.Abs(path)
	if err != nil || !strings.HasPrefix(resolved, filepath.Clean(root)+string(filepath.Separator)) {
		respondError(w, http.StatusBadRequest, "invalid asset path")
		return
	}
	http.ServeFile(w, r, resolved)
}
