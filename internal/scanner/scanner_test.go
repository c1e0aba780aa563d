package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
)

func newTestScanner(t *testing.T) (*Scanner, *catalog.Store) {
	t.Helper()
	t.Setenv("GAZE_DATA_DIR", t.TempDir())
	cfg := config.Load()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "gaze.db"), slog.Default())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, cfg, slog.Default()), store
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestLibrary(t *testing.T, store *catalog.Store, folder string, recursive bool) *catalog.Library {
	t.Helper()
	lib := &catalog.Library{LibraryID: "lib-1", FolderPath: folder, Recursive: recursive}
	if err := store.CreateLibrary(context.Background(), lib); err != nil {
		t.Fatalf("creating library: %v", err)
	}
	return lib
}

func TestScan_DiscoversSupportedFiles(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, "clip.mp4"), "video bytes")
	writeFile(t, filepath.Join(folder, "photo.jpg"), "photo bytes")
	writeFile(t, filepath.Join(folder, "notes.txt"), "not media")
	writeFile(t, filepath.Join(folder, ".hidden.mp4"), "hidden")
	lib := newTestLibrary(t, store, folder, true)

	result, err := scanner.Scan(context.Background(), lib, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.New != 2 || result.Total != 2 {
		t.Errorf("expected 2 new media files, got %+v", result)
	}

	known, err := store.MediaByLibraryPath(context.Background(), lib.LibraryID)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	m := known[filepath.Join(folder, "clip.mp4")]
	if m == nil || m.MediaType != catalog.MediaTypeVideo || m.Status != catalog.StatusQueued {
		t.Errorf("video not registered properly: %+v", m)
	}
	if len(m.Fingerprint) != 16 {
		t.Errorf("fingerprint not computed: %q", m.Fingerprint)
	}
}

func TestScan_NonRecursiveSkipsSubdirs(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, "top.mp4"), "top")
	writeFile(t, filepath.Join(folder, "sub", "nested.mp4"), "nested")
	lib := newTestLibrary(t, store, folder, false)

	result, err := scanner.Scan(context.Background(), lib, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.New != 1 {
		t.Errorf("non-recursive scan should only find the top file, got %+v", result)
	}
}

func TestScan_UnchangedAndChanged(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	path := filepath.Join(folder, "clip.mp4")
	writeFile(t, path, "original content")
	lib := newTestLibrary(t, store, folder, true)

	if _, err := scanner.Scan(context.Background(), lib, nil); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	ctx := context.Background()
	known, _ := store.MediaByLibraryPath(ctx, lib.LibraryID)
	id := known[path].MediaID
	if err := store.MarkMediaDone(ctx, id); err != nil {
		t.Fatalf("marking done: %v", err)
	}

	// Untouched file: second scan leaves it alone.
	result, err := scanner.Scan(ctx, lib, nil)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if result.Unchanged != 1 || result.Changed != 0 {
		t.Errorf("expected unchanged, got %+v", result)
	}
	m, _ := store.GetMedia(ctx, id)
	if m.Status != catalog.StatusDone {
		t.Errorf("unchanged file should stay DONE, got %q", m.Status)
	}

	// Rewrite with different content and a new mtime.
	writeFile(t, path, "completely different content now")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	result, err = scanner.Scan(ctx, lib, nil)
	if err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if result.Changed != 1 {
		t.Errorf("expected changed, got %+v", result)
	}
	m, _ = store.GetMedia(ctx, id)
	if m.Status != catalog.StatusQueued {
		t.Errorf("changed file should reset to QUEUED, got %q", m.Status)
	}
}

func TestScan_DeletedFilesRemoved(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	path := filepath.Join(folder, "clip.mp4")
	writeFile(t, path, "bytes")
	lib := newTestLibrary(t, store, folder, true)
	ctx := context.Background()

	if _, err := scanner.Scan(ctx, lib, nil); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	result, err := scanner.Scan(ctx, lib, nil)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("expected 1 deleted, got %+v", result)
	}
	known, _ := store.MediaByLibraryPath(ctx, lib.LibraryID)
	if len(known) != 0 {
		t.Errorf("vanished file should be gone from the catalog, got %d rows", len(known))
	}
}

func TestScan_PairsLivePhotos(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, "IMG_0001.heic"), "photo half")
	writeFile(t, filepath.Join(folder, "IMG_0001.mov"), "video half")
	lib := newTestLibrary(t, store, folder, true)
	ctx := context.Background()

	result, err := scanner.Scan(ctx, lib, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.LivePairs != 1 {
		t.Errorf("expected 1 live pair, got %+v", result)
	}

	known, _ := store.MediaByLibraryPath(ctx, lib.LibraryID)
	video := known[filepath.Join(folder, "IMG_0001.mov")]
	photo := known[filepath.Join(folder, "IMG_0001.heic")]
	if !video.IsLivePhotoComponent {
		t.Error("video half should be marked as a component")
	}
	if video.LivePhotoPairID == nil || *video.LivePhotoPairID != photo.Fingerprint {
		t.Errorf("video pair id should be the still's fingerprint %q, got %v",
			photo.Fingerprint, video.LivePhotoPairID)
	}
	if photo.IsLivePhotoComponent {
		t.Error("photo half must stay visible")
	}
	if photo.LivePhotoPairID == nil || *photo.LivePhotoPairID != photo.Fingerprint {
		t.Errorf("photo should carry the shared pair id, got %v", photo.LivePhotoPairID)
	}
}

func TestScan_IgnoresIllegalLivePairExtensions(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	// Same stem, but neither side is a legal live photo half.
	writeFile(t, filepath.Join(folder, "IMG_0002.png"), "photo half")
	writeFile(t, filepath.Join(folder, "IMG_0002.mp4"), "video half")
	lib := newTestLibrary(t, store, folder, true)
	ctx := context.Background()

	result, err := scanner.Scan(ctx, lib, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.LivePairs != 0 {
		t.Errorf("expected no live pairs, got %+v", result)
	}
	known, _ := store.MediaByLibraryPath(ctx, lib.LibraryID)
	video := known[filepath.Join(folder, "IMG_0002.mp4")]
	if video.IsLivePhotoComponent || video.LivePhotoPairID != nil {
		t.Errorf("video must stay unpaired, got component=%v pair=%v",
			video.IsLivePhotoComponent, video.LivePhotoPairID)
	}
}

func TestScan_ResyncRequeuesFailedItems(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	path := filepath.Join(folder, "clip.mp4")
	writeFile(t, path, "bytes")
	lib := newTestLibrary(t, store, folder, true)
	ctx := context.Background()

	if _, err := scanner.Scan(ctx, lib, nil); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	known, _ := store.MediaByLibraryPath(ctx, lib.LibraryID)
	id := known[path].MediaID
	if err := store.MarkMediaFailed(ctx, id, "ffmpeg_error", "boom"); err != nil {
		t.Fatalf("marking failed: %v", err)
	}

	if _, err := scanner.Scan(ctx, lib, nil); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	m, err := store.GetMedia(ctx, id)
	if err != nil {
		t.Fatalf("getting media: %v", err)
	}
	if m.Status != catalog.StatusQueued {
		t.Errorf("failed item should requeue on rescan, got %q", m.Status)
	}
	if m.ErrorCode != nil || m.ErrorMessage != nil {
		t.Errorf("error fields should clear, got %v %v", m.ErrorCode, m.ErrorMessage)
	}
}

func TestScan_ReportsProgress(t *testing.T) {
	scanner, store := newTestScanner(t)
	folder := t.TempDir()
	for i := 0; i < 25; i++ {
		writeFile(t, filepath.Join(folder, "clip"+string(rune('a'+i))+".mp4"), "x")
	}
	lib := newTestLibrary(t, store, folder, true)

	var updates []Progress
	_, err := scanner.Scan(context.Background(), lib, func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	// 25 files: progress at 10, 20 and the final report.
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d: %+v", len(updates), updates)
	}
	last := updates[len(updates)-1]
	if last.Scanned != 25 || last.Total != 25 {
		t.Errorf("final progress should be complete, got %+v", last)
	}
}

func TestIsScanning(t *testing.T) {
	scanner, _ := newTestScanner(t)
	if scanner.IsScanning("lib-1") {
		t.Error("no scan should be active")
	}
}
