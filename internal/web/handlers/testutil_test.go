package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/facerec"
	"github.com/gazehq/gaze-engine/internal/pipeline"
	"github.com/gazehq/gaze-engine/internal/scanner"
	"github.com/gazehq/gaze-engine/internal/search"
)

// nopRunner satisfies the scheduler without indexing anything.
type nopRunner struct{}

func (nopRunner) Process(ctx context.Context, mediaID string) error { return nil }
func (nopRunner) Enhance(ctx context.Context, mediaID string) error { return nil }

type nopEvents struct{}

func (nopEvents) Broadcast(event any) {}

// newDeps builds a handler dependency set on a throwaway catalog.
func newDeps(t *testing.T) Deps {
	t.Helper()
	t.Setenv("GAZE_DATA_DIR", t.TempDir())
	cfg := config.Load()
	log := slog.Default()

	store, err := catalog.Open(cfg.DatabasePath(), log)
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sched := pipeline.NewScheduler(store, nopRunner{}, log)
	t.Cleanup(sched.Close)

	return Deps{
		Config:    cfg,
		Store:     store,
		Log:       log,
		Events:    nopEvents{},
		Planner:   search.NewPlanner(store, cfg, log, nil),
		Scheduler: sched,
		Scanner:   scanner.New(store, cfg, log),
		Learner:   facerec.NewLearner(store, log),
	}
}

// seedMedia inserts a library (once) and one media row under it.
func seedMedia(t *testing.T, deps Deps, mediaID, mediaType string) {
	t.Helper()
	ctx := context.Background()
	if _, err := deps.Store.GetLibrary(ctx, "lib-1"); err != nil {
		lib := catalog.Library{LibraryID: "lib-1", FolderPath: "/tmp/lib-1", Recursive: true}
		if err := deps.Store.CreateLibrary(ctx, &lib); err != nil {
			t.Fatalf("creating library: %v", err)
		}
	}
	m := catalog.Media{
		MediaID:     mediaID,
		LibraryID:   "lib-1",
		Path:        "/tmp/lib-1/" + mediaID + ".mp4",
		Filename:    mediaID + ".mp4",
		FileExt:     ".mp4",
		MediaType:   mediaType,
		FileSize:    1024,
		MtimeMs:     1700000000000,
		Fingerprint: "fp-" + mediaID,
		Status:      catalog.StatusQueued,
	}
	if err := deps.Store.InsertMedia(context.Background(), &m); err != nil {
		t.Fatalf("inserting media: %v", err)
	}
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withChiParams injects chi URL parameters into a request.
func withChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse decodes a recorder body into a generic map.
func parseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
