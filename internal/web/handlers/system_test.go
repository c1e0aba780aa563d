package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestSystem_Health(t *testing.T) {
	deps := newDeps(t)
	deps.Missing = []string{"ffmpeg"}
	h := NewSystemHandler(deps)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("status = %v, want ok", body["status"])
	}
	missing, _ := body["missing_tools"].([]any)
	if len(missing) != 1 || missing[0] != "ffmpeg" {
		t.Fatalf("missing_tools = %v, want [ffmpeg]", body["missing_tools"])
	}
}

func TestSystem_Shutdown(t *testing.T) {
	deps := newDeps(t)
	called := make(chan struct{})
	deps.Shutdown = func() { close(called) }
	h := NewSystemHandler(deps)

	rec := httptest.NewRecorder()
	h.Shutdown(rec, httptest.NewRequest(http.MethodPost, "/shutdown", nil))
	assertStatusCode(t, rec, http.StatusOK)
	<-called
}

func TestSystem_LogsTail(t *testing.T) {
	deps := newDeps(t)
	h := NewSystemHandler(deps)

	if err := os.WriteFile(deps.Config.LogPath(),
		[]byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.Logs(rec, httptest.NewRequest(http.MethodGet, "/logs?lines=2", nil))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	lines, _ := body["lines"].([]any)
	if len(lines) != 2 || lines[0] != "two" || lines[1] != "three" {
		t.Fatalf("lines = %v, want last two", body["lines"])
	}
}

func TestSystem_LogsMissingFile(t *testing.T) {
	deps := newDeps(t)
	h := NewSystemHandler(deps)

	rec := httptest.NewRecorder()
	h.Logs(rec, httptest.NewRequest(http.MethodGet, "/logs", nil))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	if lines, _ := body["lines"].([]any); len(lines) != 0 {
		t.Fatalf("lines = %v, want empty", body["lines"])
	}
}
