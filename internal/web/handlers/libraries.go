package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/scanner"
	"github.com/gazehq/gaze-engine/internal/web/ws"
)

// LibrariesHandler serves library CRUD and scan triggering.
type LibrariesHandler struct {
	deps Deps
}

func NewLibrariesHandler(deps Deps) *LibrariesHandler {
	return &LibrariesHandler{deps: deps}
}

func (h *LibrariesHandler) List(w http.ResponseWriter, r *http.Request) {
	libs, err := h.deps.Store.ListLibraries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if libs == nil {
		libs = []catalog.Library{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"libraries": libs})
}

func (h *LibrariesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FolderPath string `json:"folder_path"`
		Name       string `json:"name"`
		Recursive  *bool  `json:"recursive"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FolderPath == "" {
		respondError(w, http.StatusBadRequest, "folder_path is required")
		return
	}
	abs, err := filepath.Abs(req.FolderPath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid folder_path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, "folder_path is not a directory")
		return
	}
	if _, err := h.deps.Store.GetLibraryByPath(r.Context(), abs); err == nil {
		respondError(w, http.StatusConflict, "library already registered")
		return
	}

	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}
	lib := catalog.Library{
		LibraryID:  uuid.NewString(),
		FolderPath: abs,
		Name:       req.Name,
		Recursive:  recursive,
	}
	if err := h.deps.Store.CreateLibrary(r.Context(), &lib); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, lib)
}

func (h *LibrariesHandler) Get(w http.ResponseWriter, r *http.Request) {
	lib, err := h.deps.Store.GetLibrary(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "library not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, lib)
}

func (h *LibrariesHandler) Update(w http.ResponseWriter, r *http.Request) {
	lib, err := h.deps.Store.GetLibrary(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "library not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Name      *string `json:"name"`
		Recursive *bool   `json:"recursive"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != nil {
		lib.Name = *req.Name
	}
	if req.Recursive != nil {
		lib.Recursive = *req.Recursive
	}
	if err := h.deps.Store.UpdateLibrary(r.Context(), lib); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, lib)
}

func (h *LibrariesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Store.DeleteLibrary(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "library not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Scan kicks off an asynchronous library scan. Progress and completion
// are broadcast over the websocket hub.
func (h *LibrariesHandler) Scan(w http.ResponseWriter, r *http.Request) {
	lib, err := h.deps.Store.GetLibrary(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "library not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.deps.Scanner.IsScanning(lib.LibraryID) {
		respondError(w, http.StatusConflict, scanner.ErrAlreadyScanning.Error())
		return
	}

	go h.runScan(lib)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":     "scan_started",
		"library_id": lib.LibraryID,
	})
}

func (h *LibrariesHandler) runScan(lib *catalog.Library) {
	ctx := context.Background()
	result, err := h.deps.Scanner.Scan(ctx, lib, func(p scanner.Progress) {
		h.deps.Events.Broadcast(ws.NewScanProgress(p.LibraryID, p.Scanned, p.Total))
	})
	if err != nil {
		h.deps.Log.Error("scan failed", "library_id", lib.LibraryID, "error", err)
		return
	}
	h.deps.Events.Broadcast(ws.NewScanComplete(
		result.LibraryID, result.Total, result.New, result.Changed, result.Deleted))
}
