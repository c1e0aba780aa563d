package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

// fakeRunner marks items DONE and optionally blocks until released.
type fakeRunner struct {
	store   *catalog.Store
	mu      sync.Mutex
	ran     []string
	block   chan struct{}
	enhance []string
}

func (f *fakeRunner) Process(ctx context.Context, mediaID string) error {
	f.mu.Lock()
	f.ran = append(f.ran, mediaID)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.store.SetMediaStatus(context.WithoutCancel(ctx), mediaID, catalog.StatusCancelled, 0)
			return nil
		}
	}
	return f.store.MarkMediaDone(ctx, mediaID)
}

func (f *fakeRunner) Enhance(ctx context.Context, mediaID string) error {
	f.mu.Lock()
	f.enhance = append(f.enhance, mediaID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRunner) processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

func newSchedulerFixture(t *testing.T) (*Scheduler, *fakeRunner, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "gaze.db"), slog.Default())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runner := &fakeRunner{store: store}
	sched := NewScheduler(store, runner, slog.Default())
	t.Cleanup(sched.Close)
	return sched, runner, store
}

func queueMedia(t *testing.T, store *catalog.Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	lib := &catalog.Library{LibraryID: "lib-1", FolderPath: t.TempDir()}
	if err := store.CreateLibrary(ctx, lib); err != nil {
		t.Fatalf("creating library: %v", err)
	}
	for i, id := range ids {
		m := &catalog.Media{
			MediaID:     id,
			LibraryID:   "lib-1",
			Path:        filepath.Join(lib.FolderPath, id+".jpg"),
			Filename:    id + ".jpg",
			FileExt:     ".jpg",
			MediaType:   catalog.MediaTypePhoto,
			CreatedAtMs: int64(1000 + i),
		}
		if err := store.InsertMedia(ctx, m); err != nil {
			t.Fatalf("inserting media: %v", err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartQueued_RespectsConcurrencyCap(t *testing.T) {
	sched, runner, store := newSchedulerFixture(t)
	ctx := context.Background()
	queueMedia(t, store, "m-1", "m-2", "m-3")
	if err := store.SetSetting(ctx, "max_concurrent_jobs", 1); err != nil {
		t.Fatalf("setting: %v", err)
	}
	runner.block = make(chan struct{})

	started, err := sched.StartQueued(ctx, 10)
	if err != nil {
		t.Fatalf("start queued: %v", err)
	}
	if started != 1 {
		t.Fatalf("cap 1 should admit one item, admitted %d", started)
	}
	waitFor(t, "first run", func() bool { return sched.Live() == 1 })

	// A second call admits nothing while the slot is taken.
	if started, _ := sched.StartQueued(ctx, 10); started != 0 {
		t.Errorf("expected no admission at the cap, got %d", started)
	}

	close(runner.block)
	runner.mu.Lock()
	runner.block = nil
	runner.mu.Unlock()

	// Self-drain walks the rest of the queue.
	waitFor(t, "queue drain", func() bool { return len(runner.processed()) == 3 })
}

func TestStartQueued_PausedAdmitsNothing(t *testing.T) {
	sched, runner, store := newSchedulerFixture(t)
	ctx := context.Background()
	queueMedia(t, store, "m-1")

	sched.Pause()
	if started, _ := sched.StartQueued(ctx, 10); started != 0 {
		t.Fatalf("paused scheduler should admit nothing, got %d", started)
	}

	sched.Resume(ctx)
	waitFor(t, "resume drain", func() bool { return len(runner.processed()) == 1 })
}

func TestStop_CancelsRunningItem(t *testing.T) {
	sched, runner, store := newSchedulerFixture(t)
	ctx := context.Background()
	queueMedia(t, store, "m-1")
	runner.block = make(chan struct{})

	if started, _ := sched.StartQueued(ctx, 10); started != 1 {
		t.Fatal("expected one admission")
	}
	waitFor(t, "run start", func() bool { return sched.Running("m-1") })

	if !sched.Stop("m-1") {
		t.Fatal("expected Stop to find the running task")
	}
	waitFor(t, "cancellation", func() bool { return !sched.Running("m-1") })

	status, err := store.GetMediaStatus(ctx, "m-1")
	if err != nil {
		t.Fatalf("reading status: %v", err)
	}
	if status != catalog.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", status)
	}
}

func TestStartQueued_SkipsAlreadyRunningItems(t *testing.T) {
	sched, runner, store := newSchedulerFixture(t)
	ctx := context.Background()
	queueMedia(t, store, "m-1")
	runner.block = make(chan struct{})
	defer close(runner.block)

	if started, _ := sched.StartQueued(ctx, 10); started != 1 {
		t.Fatal("expected one admission")
	}
	waitFor(t, "run start", func() bool { return sched.Running("m-1") })

	// The item is still QUEUED in the catalog (fake runner does not set
	// stage statuses), so only the running-task map can prevent a dup.
	if started, _ := sched.StartQueued(ctx, 10); started != 0 {
		t.Errorf("running item should not be admitted twice, got %d", started)
	}
}

func TestScheduler_TimerDrainsQueue(t *testing.T) {
	sched, runner, store := newSchedulerFixture(t)
	queueMedia(t, store, "m-1")

	sched.Start(context.Background())
	waitFor(t, "timer drain", func() bool { return len(runner.processed()) == 1 })
}
