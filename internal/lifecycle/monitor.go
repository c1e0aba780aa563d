package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

const (
	parentPollInterval = 10 * time.Second
	parentMaxStrikes   = 3
)

// ParentMonitor watches the process that launched the engine and calls
// onGone after the parent has been missing for several consecutive
// polls, so an orphaned engine shuts itself down instead of lingering.
type ParentMonitor struct {
	parentPID int
	interval  time.Duration
	strikes   int
	log       *slog.Logger
	onGone    func()
}

// NewParentMonitor builds a monitor with the standard 10-second poll
// and three-strike tolerance. A zero parentPID disables monitoring.
func NewParentMonitor(parentPID int, log *slog.Logger, onGone func()) *ParentMonitor {
	return &ParentMonitor{
		parentPID: parentPID,
		interval:  parentPollInterval,
		strikes:   parentMaxStrikes,
		log:       log,
		onGone:    onGone,
	}
}

// Run polls until the context ends or the parent is declared gone.
func (m *ParentMonitor) Run(ctx context.Context) {
	if m.parentPID <= 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if PIDAlive(m.parentPID) {
				misses = 0
				continue
			}
			misses++
			m.log.Warn("parent process not found",
				"parent_pid", m.parentPID, "strike", misses, "max", m.strikes)
			if misses >= m.strikes {
				m.log.Info("parent gone, shutting down", "parent_pid", m.parentPID)
				m.onGone()
				return
			}
		}
	}
}
