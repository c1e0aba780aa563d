package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/facerec"
	"github.com/gazehq/gaze-engine/internal/pipeline"
	"github.com/gazehq/gaze-engine/internal/scanner"
	"github.com/gazehq/gaze-engine/internal/search"
	"github.com/gazehq/gaze-engine/internal/web/handlers"
	"github.com/gazehq/gaze-engine/internal/web/ws"
)

type nopRunner struct{}

func (nopRunner) Process(ctx context.Context, mediaID string) error { return nil }
func (nopRunner) Enhance(ctx context.Context, mediaID string) error { return nil }

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	t.Setenv("GAZE_DATA_DIR", t.TempDir())
	t.Setenv("GAZE_AUTH_TOKEN", token)
	cfg := config.Load()
	log := slog.Default()

	store, err := catalog.Open(cfg.DatabasePath(), log)
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := ws.NewHub(log)
	t.Cleanup(hub.Close)
	sched := pipeline.NewScheduler(store, nopRunner{}, log)
	t.Cleanup(sched.Close)

	deps := handlers.Deps{
		Config:    cfg,
		Store:     store,
		Log:       log,
		Events:    hub,
		Planner:   search.NewPlanner(store, cfg, log, nil),
		Scheduler: sched,
		Scanner:   scanner.New(store, cfg, log),
		Learner:   facerec.NewLearner(store, log),
	}
	return NewServer(deps, hub)
}

func TestServer_HealthIsOpen(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestServer_APIRequiresToken(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/libraries", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/libraries", nil)
	req.Header.Set("Authorization", "Bearer secret")
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestServer_DisallowedOrigin(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("origin status = %d, want 403", rec.Code)
	}
}

func TestServer_TauriOriginAllowed(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "tauri://localhost")
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("tauri origin status = %d, want 200", rec.Code)
	}
}
