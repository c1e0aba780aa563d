package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

// BackupHandler serves catalog export and restore.
type BackupHandler struct {
	deps Deps
}

func NewBackupHandler(deps Deps) *BackupHandler {
	return &BackupHandler{deps: deps}
}

func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	backup, err := h.deps.Store.DumpBackup(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filename := "gaze-backup-" + time.Now().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	respondJSON(w, http.StatusOK, backup)
}

// Restore applies a backup in merge or replace mode. With
// skip_missing_paths, libraries whose folder no longer exists are
// dropped from the payload along with their media.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode             string          `json:"mode"`
		SkipMissingPaths bool            `json:"skip_missing_paths"`
		Backup           *catalog.Backup `json:"backup"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Backup == nil {
		respondError(w, http.StatusBadRequest, "backup payload is required")
		return
	}
	switch req.Mode {
	case "", "merge":
		req.Mode = "merge"
	case "replace":
	default:
		respondError(w, http.StatusBadRequest, "mode must be merge or replace")
		return
	}

	skippedLibraries := 0
	if req.SkipMissingPaths {
		skippedLibraries = pruneMissingLibraries(req.Backup)
	}

	counts, err := h.deps.Store.RestoreBackup(r.Context(), req.Backup, req.Mode == "replace")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"mode":              req.Mode,
		"restored":          counts,
		"skipped_libraries": skippedLibraries,
	})
}

// pruneMissingLibraries drops libraries whose folder vanished, plus
// every row that hangs off their media. Returns how many libraries
// were dropped.
func pruneMissingLibraries(b *catalog.Backup) int {
	var keptLibs []map[string]any
	goneLibs := map[string]struct{}{}
	for _, lib := range b.Tables["libraries"] {
		path, _ := lib["folder_path"].(string)
		id, _ := lib["library_id"].(string)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			keptLibs = append(keptLibs, lib)
		} else {
			goneLibs[id] = struct{}{}
		}
	}
	if len(goneLibs) == 0 {
		return 0
	}
	b.Tables["libraries"] = keptLibs

	goneMedia := map[string]struct{}{}
	var keptMedia []map[string]any
	for _, m := range b.Tables["media"] {
		libID, _ := m["library_id"].(string)
		if _, gone := goneLibs[libID]; gone {
			if id, ok := m["media_id"].(string); ok {
				goneMedia[id] = struct{}{}
			}
			continue
		}
		keptMedia = append(keptMedia, m)
	}
	b.Tables["media"] = keptMedia

	mediaKeyed := map[string]string{
		"media_metadata":      "media_id",
		"frames":              "video_id",
		"detections":          "video_id",
		"transcript_segments": "video_id",
		"faces":               "video_id",
		"media_favorites":     "media_id",
		"media_tags":          "media_id",
	}
	for table, key := range mediaKeyed {
		var kept []map[string]any
		for _, row := range b.Tables[table] {
			id, _ := row[key].(string)
			if _, gone := goneMedia[id]; gone {
				continue
			}
			kept = append(kept, row)
		}
		b.Tables[table] = kept
	}
	return len(goneLibs)
}
