package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/facerec"
	"github.com/gazehq/gaze-engine/internal/pipeline"
	"github.com/gazehq/gaze-engine/internal/scanner"
	"github.com/gazehq/gaze-engine/internal/search"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// FaceBackfiller runs the one-off face pass behind the detect-faces
// maintenance endpoint.
type FaceBackfiller interface {
	BackfillFaces(ctx context.Context) (int, error)
}

// Deps bundles the engine services the handlers dispatch to. Missing
// lists external tools the startup probe could not find. Shutdown
// triggers a graceful engine stop.
type Deps struct {
	Config    *config.Config
	Store     *catalog.Store
	Log       *slog.Logger
	Events    pipeline.Events
	Planner   *search.Planner
	Scheduler *pipeline.Scheduler
	Scanner   *scanner.Scanner
	Learner   *facerec.Learner
	Backfill  FaceBackfiller
	Missing   []string
	Shutdown  func()
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON parses the request body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// cleanName collapses whitespace in a display name.
func cleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
