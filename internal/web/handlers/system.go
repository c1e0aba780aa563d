package handlers

import (
	"net/http"
	"os"
	"strings"
	"time"
)

// SystemHandler serves health, logs and shutdown.
type SystemHandler struct {
	deps      Deps
	startedAt time.Time
}

func NewSystemHandler(deps Deps) *SystemHandler {
	return &SystemHandler{deps: deps, startedAt: time.Now()}
}

// Health reports engine liveness. Served without authentication.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	counts, err := h.deps.Store.CountMediaByStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"media_by_status": counts,
		"missing_tools":   h.deps.Missing,
	})
}

// Shutdown acknowledges first, then stops the engine so the response
// reaches the caller.
func (h *SystemHandler) Shutdown(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "shutting_down"})
	if h.deps.Shutdown != nil {
		go h.deps.Shutdown()
	}
}

// Logs returns the tail of the engine log file.
func (h *SystemHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "lines", 200)
	if limit <= 0 {
		limit = 200
	}

	data, err := os.ReadFile(h.deps.Config.LogPath())
	if os.IsNotExist(err) {
		respondJSON(w, http.StatusOK, map[string]any{"lines": []string{}})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	respondJSON(w, http.StatusOK, map[string]any{"lines": lines})
}
