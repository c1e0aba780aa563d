package handlers

import (
	"net/http"
)

// SettingsHandler serves the persisted engine options.
type SettingsHandler struct {
	deps Deps
}

func NewSettingsHandler(deps Deps) *SettingsHandler {
	return &SettingsHandler{deps: deps}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Store.AllSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// Patch updates a subset of settings. Keys outside the known option
// set are rejected before anything is written.
func (h *SettingsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if !decodeJSON(w, r, &updates) {
		return
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, "no settings provided")
		return
	}
	for key := range updates {
		if _, known := h.deps.Config.Defaults.Settings[key]; !known {
			respondError(w, http.StatusBadRequest, "unknown setting: "+key)
			return
		}
	}

	for key, value := range updates {
		if err := h.deps.Store.SetSetting(r.Context(), key, value); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	settings, err := h.deps.Store.AllSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"settings": settings})
}
