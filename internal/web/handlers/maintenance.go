package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
)

// MaintenanceHandler serves destructive reset and backfill operations.
type MaintenanceHandler struct {
	deps Deps
}

func NewMaintenanceHandler(deps Deps) *MaintenanceHandler {
	return &MaintenanceHandler{deps: deps}
}

// WipeDerived stops all work, truncates the derived tables, requeues
// every item and removes the artifact directories.
func (h *MaintenanceHandler) WipeDerived(w http.ResponseWriter, r *http.Request) {
	stopped := h.deps.Scheduler.StopAll()
	if err := h.deps.Store.WipeDerived(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.deps.Planner.Shards().Clear()
	h.removeArtifactDirs(
		h.deps.Config.ThumbnailsDir(),
		h.deps.Config.ShardsDir(),
		h.deps.Config.FacesDir(),
	)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "wiped",
		"jobs_stopped": stopped,
	})
}

// WipeFaces clears the face rows and learning state, keeping persons.
func (h *MaintenanceHandler) WipeFaces(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.WipeFaces(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.removeArtifactDirs(h.deps.Config.FacesDir())
	respondJSON(w, http.StatusOK, map[string]string{"status": "wiped"})
}

// DetectFaces starts a one-off face pass over DONE items that never got
// face rows, for catalogs indexed before face detection was enabled.
func (h *MaintenanceHandler) DetectFaces(w http.ResponseWriter, r *http.Request) {
	if h.deps.Backfill == nil {
		respondError(w, http.StatusServiceUnavailable, "face detection is not configured")
		return
	}
	go func() {
		n, err := h.deps.Backfill.BackfillFaces(context.Background())
		if err != nil {
			h.deps.Log.Error("face backfill aborted", "processed", n, "error", err)
			return
		}
		h.deps.Log.Info("face backfill finished", "processed", n)
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// removeArtifactDirs empties each directory but keeps the directory
// itself so later writes need no re-create.
func (h *MaintenanceHandler) removeArtifactDirs(dirs ...string) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				h.deps.Log.Warn("removing artifact failed", "path", e.Name(), "error", err)
			}
		}
	}
}
