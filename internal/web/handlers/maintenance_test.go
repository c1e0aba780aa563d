package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

func TestMaintenance_WipeDerived(t *testing.T) {
	deps := newDeps(t)
	h := NewMaintenanceHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	if err := deps.Store.ReplaceFrames(ctx, "m-1", []catalog.Frame{{
		FrameID: "m-1-f0", VideoID: "m-1", FrameIndex: 0,
		TimestampMs: 0, ThumbnailPath: "/thumbs/m-1/frame_000000.jpg",
	}}); err != nil {
		t.Fatal(err)
	}
	if err := deps.Store.MarkMediaDone(ctx, "m-1"); err != nil {
		t.Fatal(err)
	}
	thumbDir := filepath.Join(deps.Config.ThumbnailsDir(), "m-1")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.WipeDerived(rec, httptest.NewRequest(http.MethodPost, "/maintenance/wipe-derived", nil))
	assertStatusCode(t, rec, http.StatusOK)

	frames, err := deps.Store.FramesForVideo(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0", len(frames))
	}
	status, err := deps.Store.GetMediaStatus(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if status != catalog.StatusQueued {
		t.Fatalf("status = %s, want QUEUED", status)
	}
	if _, err := os.Stat(thumbDir); !os.IsNotExist(err) {
		t.Fatal("thumbnail dir should be removed")
	}
}

func TestMaintenance_WipeFaces(t *testing.T) {
	deps := newDeps(t)
	h := NewMaintenanceHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	seedFace(t, deps, "f-1", "m-1")
	seedPerson(t, deps, "p-a", "Ada")
	personA := "p-a"
	if err := deps.Store.AssignFace(ctx, "f-1", &personA, catalog.SourceManual, nil); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.WipeFaces(rec, httptest.NewRequest(http.MethodPost, "/maintenance/wipe-faces", nil))
	assertStatusCode(t, rec, http.StatusOK)

	faces, err := deps.Store.FacesForVideo(ctx, "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 0 {
		t.Fatalf("faces = %d, want 0", len(faces))
	}
	p, err := deps.Store.GetPerson(ctx, "p-a")
	if err != nil {
		t.Fatalf("person should survive a face wipe: %v", err)
	}
	if p.FaceCount != 0 {
		t.Fatalf("face_count = %d, want 0", p.FaceCount)
	}
}

func TestMaintenance_DetectFacesUnconfigured(t *testing.T) {
	deps := newDeps(t)
	h := NewMaintenanceHandler(deps)

	rec := httptest.NewRecorder()
	h.DetectFaces(rec, httptest.NewRequest(http.MethodPost, "/maintenance/detect-faces", nil))
	assertStatusCode(t, rec, http.StatusServiceUnavailable)
}
