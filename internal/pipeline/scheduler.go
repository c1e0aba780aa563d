package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
)

// Runner is the pipeline surface the scheduler drives.
type Runner interface {
	Process(ctx context.Context, mediaID string) error
	Enhance(ctx context.Context, mediaID string) error
}

// Scheduler admits queued media items to the pipeline up to the
// configured concurrency cap, drains the queue on a timer, and tracks
// running tasks so they can be cancelled.
type Scheduler struct {
	store  *catalog.Store
	runner Runner
	log    *slog.Logger

	mu       sync.Mutex
	paused   bool
	primary  map[string]context.CancelFunc
	enhanced map[string]context.CancelFunc
	wg       sync.WaitGroup
	stopTick context.CancelFunc
}

func NewScheduler(store *catalog.Store, runner Runner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		runner:   runner,
		log:      log.With("component", "scheduler"),
		primary:  make(map[string]context.CancelFunc),
		enhanced: make(map[string]context.CancelFunc),
	}
}

// Start launches the drain timer. The timer only admits work when no
// primary task is live, so a busy engine self-drives instead.
func (s *Scheduler) Start(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.stopTick = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(constants.SchedulerTickSeconds * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				if s.Paused() || s.Live() > 0 {
					continue
				}
				if _, err := s.StartQueued(tickCtx, constants.SchedulerDrainBatch); err != nil {
					s.log.Warn("drain tick failed", "error", err)
				}
			}
		}
	}()
}

// StartQueued admits up to min(limit, available) queued items and
// returns how many pipelines were started.
func (s *Scheduler) StartQueued(ctx context.Context, limit int) (int, error) {
	if s.Paused() {
		return 0, nil
	}

	maxJobs := s.store.SettingInt(ctx, "max_concurrent_jobs", 2)
	recentFirst := s.store.SettingBool(ctx, "prioritize_recent_media", false)

	s.mu.Lock()
	available := maxJobs - len(s.primary)
	s.mu.Unlock()
	if available <= 0 {
		return 0, nil
	}
	if limit > available {
		limit = available
	}

	items, err := s.store.QueuedMedia(ctx, limit, recentFirst)
	if err != nil {
		return 0, err
	}

	started := 0
	for i := range items {
		if s.spawn(ctx, items[i].MediaID) {
			started++
		}
	}
	return started, nil
}

// spawn registers and launches one primary pipeline task. Returns false
// when the item is already running.
func (s *Scheduler) spawn(ctx context.Context, mediaID string) bool {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	if _, running := s.primary[mediaID]; running {
		s.mu.Unlock()
		cancel()
		return false
	}
	s.primary[mediaID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.runner.Process(runCtx, mediaID)

		s.mu.Lock()
		delete(s.primary, mediaID)
		s.mu.Unlock()
		cancel()

		after := context.WithoutCancel(runCtx)
		if err != nil {
			s.log.Warn("pipeline run failed", "media_id", mediaID, "error", err)
		} else {
			s.maybeEnhance(after, mediaID)
		}
		s.drainAfterCompletion(after)
	}()
	return true
}

// maybeEnhance schedules the audio stages for deep-preset videos that
// just reached DONE.
func (s *Scheduler) maybeEnhance(ctx context.Context, mediaID string) {
	m, err := s.store.GetMedia(ctx, mediaID)
	if err != nil || m.Status != catalog.StatusDone {
		return
	}
	preset := s.store.SettingString(ctx, "indexing_preset", PresetDeep)
	if EnhancedStages(m.MediaType, preset) == nil {
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	if _, running := s.enhanced[mediaID]; running {
		s.mu.Unlock()
		cancel()
		return
	}
	s.enhanced[mediaID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.enhanced, mediaID)
			s.mu.Unlock()
			cancel()
		}()
		if err := s.runner.Enhance(runCtx, mediaID); err != nil {
			s.log.Warn("enhanced run failed", "media_id", mediaID, "error", err)
		}
	}()
}

// drainAfterCompletion keeps the queue moving once the last live
// primary task finishes.
func (s *Scheduler) drainAfterCompletion(ctx context.Context) {
	if s.Paused() || s.Live() > 0 {
		return
	}
	queued, err := s.store.QueuedMedia(ctx, 1, false)
	if err != nil || len(queued) == 0 {
		return
	}
	if _, err := s.StartQueued(ctx, constants.SchedulerDrainBatch); err != nil {
		s.log.Warn("self-drain failed", "error", err)
	}
}

// Stop cancels the running tasks for one media item. Returns true if
// anything was cancelled.
func (s *Scheduler) Stop(mediaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopped := false
	if cancel, ok := s.primary[mediaID]; ok {
		cancel()
		stopped = true
	}
	if cancel, ok := s.enhanced[mediaID]; ok {
		cancel()
		stopped = true
	}
	return stopped
}

// StopAll cancels every running task.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, cancel := range s.primary {
		cancel()
		n++
	}
	for _, cancel := range s.enhanced {
		cancel()
		n++
	}
	return n
}

// Pause stops admitting new work; running tasks continue.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume lifts the pause and immediately drains once.
func (s *Scheduler) Resume(ctx context.Context) {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	if _, err := s.StartQueued(ctx, constants.SchedulerDrainBatch); err != nil {
		s.log.Warn("resume drain failed", "error", err)
	}
}

func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Live returns the number of running primary tasks.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.primary)
}

// Running reports whether a primary task is live for the item.
func (s *Scheduler) Running(mediaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.primary[mediaID]
	return ok
}

// Close stops the timer, cancels every task and waits for them.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.stopTick != nil {
		s.stopTick()
	}
	s.mu.Unlock()
	s.StopAll()
	s.wg.Wait()
}
