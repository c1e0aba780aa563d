package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSettings_PatchAndGet(t *testing.T) {
	deps := newDeps(t)
	if err := deps.Store.SeedSettings(context.Background(), deps.Config.Defaults.Settings); err != nil {
		t.Fatal(err)
	}
	h := NewSettingsHandler(deps)

	rec := httptest.NewRecorder()
	h.Patch(rec, jsonRequest(t, http.MethodPatch, "/settings", map[string]any{
		"max_concurrent_jobs": 4,
	}))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	settings, _ := body["settings"].(map[string]any)
	if settings["max_concurrent_jobs"] != float64(4) {
		t.Fatalf("max_concurrent_jobs = %v, want 4", settings["max_concurrent_jobs"])
	}

	got := deps.Store.SettingInt(context.Background(), "max_concurrent_jobs", 0)
	if got != 4 {
		t.Fatalf("persisted value = %d, want 4", got)
	}
}

func TestSettings_PatchRejectsUnknownKey(t *testing.T) {
	deps := newDeps(t)
	h := NewSettingsHandler(deps)

	rec := httptest.NewRecorder()
	h.Patch(rec, jsonRequest(t, http.MethodPatch, "/settings", map[string]any{
		"warp_factor": 9,
	}))
	assertStatusCode(t, rec, http.StatusBadRequest)

	rec = httptest.NewRecorder()
	h.Patch(rec, jsonRequest(t, http.MethodPatch, "/settings", map[string]any{}))
	assertStatusCode(t, rec, http.StatusBadRequest)
}
