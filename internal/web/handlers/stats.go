package handlers

import (
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

// StatsHandler serves catalog aggregates and indexing summaries.
type StatsHandler struct {
	deps Deps
}

func NewStatsHandler(deps Deps) *StatsHandler {
	return &StatsHandler{deps: deps}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Store.CollectStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"disk_usage_bytes": map[string]int64{
			"thumbnails": dirSize(h.deps.Config.ThumbnailsDir()),
			"shards":     dirSize(h.deps.Config.ShardsDir()),
			"faces":      dirSize(h.deps.Config.FacesDir()),
		},
	})
}

// Indexing summarizes the pipeline's current workload.
func (h *StatsHandler) Indexing(w http.ResponseWriter, r *http.Request) {
	counts, err := h.deps.Store.CountMediaByStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	active := 0
	for _, status := range catalog.InProgressStatuses {
		active += counts[status]
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"active":          active,
		"queued":          counts[catalog.StatusQueued],
		"failed":          counts[catalog.StatusFailed],
		"done":            counts[catalog.StatusDone],
		"live":            h.deps.Scheduler.Live(),
		"paused":          h.deps.Scheduler.Paused(),
		"media_by_status": counts,
	})
}

func dirSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
