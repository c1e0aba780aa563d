package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/media"
)

// CheckDependencies probes for the external tools the pipeline shells
// out to and returns the missing ones. Missing tools are not fatal;
// affected stages fail per item instead.
func CheckDependencies(log *slog.Logger) []string {
	var missing []string
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if media.HasBinary(tool) {
			continue
		}
		missing = append(missing, tool)
		log.Warn("external tool not found, video stages will fail", "tool", tool)
	}
	return missing
}

// RepairAfterCrash resets items a previous process left mid-stage,
// fails their interrupted jobs and purges orphan audio temp files.
// Idempotent; runs unconditionally at every startup.
func RepairAfterCrash(ctx context.Context, store *catalog.Store, cfg *config.Config, log *slog.Logger) error {
	requeued, failed, err := store.RepairAfterCrash(ctx)
	if err != nil {
		return err
	}
	if requeued > 0 || failed > 0 {
		log.Info("crash repair complete", "requeued_media", requeued, "failed_jobs", failed)
	}

	removed := purgeTempAudio(cfg.TempDir())
	if removed > 0 {
		log.Info("purged orphan audio files", "count", removed)
	}
	return nil
}

func purgeTempAudio(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if os.Remove(path) == nil {
			removed++
		}
	}
	return removed
}
