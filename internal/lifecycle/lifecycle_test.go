package lifecycle

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

func TestLockfile_RoundtripAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.lock")
	lf := &Lockfile{Port: 48100, Token: "secret", EngineUUID: "u-1", EnginePID: 1234, ParentPID: 42, CreatedAtMs: 1700000000000}
	if err := WriteLockfile(path, lf); err != nil {
		t.Fatalf("writing lockfile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat lockfile: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("lockfile carries the token and must be 0600, got %o", perm)
	}

	got, err := ReadLockfile(path)
	if err != nil {
		t.Fatalf("reading lockfile: %v", err)
	}
	if *got != *lf {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	if err := RemoveLockfile(path); err != nil {
		t.Fatalf("removing lockfile: %v", err)
	}
	if err := RemoveLockfile(path); err != nil {
		t.Errorf("removing an absent lockfile should succeed: %v", err)
	}
}

func TestAcquireLockfile_ReplacesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.lock")
	// A pid far beyond pid_max cannot be alive.
	stale := &Lockfile{Port: 48100, EnginePID: 1 << 26}
	if err := WriteLockfile(path, stale); err != nil {
		t.Fatalf("seeding stale lockfile: %v", err)
	}

	owner, err := AcquireLockfile(path, &Lockfile{Port: 48100, Token: "t"})
	if err != nil {
		t.Fatalf("acquiring over a stale lock: %v", err)
	}
	if owner != 0 {
		t.Errorf("a dead owner should not be reported, got pid %d", owner)
	}

	got, err := ReadLockfile(path)
	if err != nil {
		t.Fatalf("reading lockfile: %v", err)
	}
	if got.EnginePID != os.Getpid() {
		t.Errorf("expected our pid %d, got %d", os.Getpid(), got.EnginePID)
	}
	if got.CreatedAtMs == 0 {
		t.Error("expected created_at_ms to be stamped")
	}
}

func TestAcquireLockfile_ReportsLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.lock")
	// PID 1 is always alive.
	if err := WriteLockfile(path, &Lockfile{EnginePID: 1}); err != nil {
		t.Fatalf("seeding lockfile: %v", err)
	}

	owner, err := AcquireLockfile(path, &Lockfile{Port: 48100})
	if err != nil {
		t.Fatalf("acquiring: %v", err)
	}
	if owner != 1 {
		t.Errorf("expected the live owner reported, got %d", owner)
	}
}

func TestPIDAlive(t *testing.T) {
	if !PIDAlive(os.Getpid()) {
		t.Error("our own pid must be alive")
	}
	if PIDAlive(0) || PIDAlive(-1) {
		t.Error("non-positive pids are never alive")
	}
	if PIDAlive(1 << 26) {
		t.Error("a pid beyond pid_max cannot be alive")
	}
}

func TestParentMonitor_ShutsDownAfterStrikes(t *testing.T) {
	gone := make(chan struct{})
	m := &ParentMonitor{
		parentPID: 1 << 26,
		interval:  5 * time.Millisecond,
		strikes:   3,
		log:       slog.Default(),
		onGone:    func() { close(gone) },
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case <-gone:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never declared the parent gone")
	}
}

func TestParentMonitor_DisabledWithoutParent(t *testing.T) {
	m := NewParentMonitor(0, slog.Default(), func() {
		t.Error("monitor fired with no parent configured")
	})
	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled monitor should return immediately")
	}
}

func TestRepairAfterCrash(t *testing.T) {
	t.Setenv("GAZE_DATA_DIR", t.TempDir())
	cfg := config.Load()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "gaze.db"), slog.Default())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	lib := &catalog.Library{LibraryID: "lib-1", FolderPath: "/a", Name: "test"}
	if err := store.CreateLibrary(ctx, lib); err != nil {
		t.Fatalf("creating library: %v", err)
	}
	m := &catalog.Media{
		MediaID: "m-1", LibraryID: "lib-1", Path: "/a/clip.mp4", Filename: "clip.mp4",
		FileExt: ".mp4", MediaType: catalog.MediaTypeVideo, FileSize: 1, MtimeMs: 1,
		Status: catalog.StatusQueued,
	}
	if err := store.InsertMedia(ctx, m); err != nil {
		t.Fatalf("inserting media: %v", err)
	}
	if err := store.SetMediaStatus(ctx, "m-1", catalog.StatusEmbedding, 0.5); err != nil {
		t.Fatalf("setting status: %v", err)
	}
	if err := store.CreateJob(ctx, &catalog.Job{JobID: "j-1", VideoID: "m-1", Status: catalog.StatusEmbedding}); err != nil {
		t.Fatalf("creating job: %v", err)
	}
	orphan := filepath.Join(cfg.TempDir(), "chunk_123.wav")
	if err := os.WriteFile(orphan, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing orphan: %v", err)
	}

	if err := RepairAfterCrash(ctx, store, cfg, slog.Default()); err != nil {
		t.Fatalf("repairing: %v", err)
	}

	status, err := store.GetMediaStatus(ctx, "m-1")
	if err != nil {
		t.Fatalf("reading status: %v", err)
	}
	if status != catalog.StatusQueued {
		t.Errorf("expected interrupted media requeued, got %s", status)
	}
	job, err := store.GetJob(ctx, "j-1")
	if err != nil {
		t.Fatalf("reading job: %v", err)
	}
	if job.Status != catalog.StatusFailed {
		t.Errorf("expected interrupted job failed, got %s", job.Status)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("expected orphan audio purged")
	}
}
