package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/facerec"
	"github.com/gazehq/gaze-engine/internal/lifecycle"
	"github.com/gazehq/gaze-engine/internal/ml"
	"github.com/gazehq/gaze-engine/internal/pipeline"
	"github.com/gazehq/gaze-engine/internal/scanner"
	"github.com/gazehq/gaze-engine/internal/search"
	"github.com/gazehq/gaze-engine/internal/web"
	"github.com/gazehq/gaze-engine/internal/web/handlers"
	"github.com/gazehq/gaze-engine/internal/web/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine",
	Long: `Start the Gaze engine: crash repair, the indexing scheduler and the
HTTP/WebSocket API. The process runs until interrupted, until its
parent process exits, or POST /shutdown is called.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newLogger writes structured logs to stderr and the engine log file.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}

	out := io.Writer(os.Stderr)
	closeFn := func() {}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err == nil {
		if f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = io.MultiWriter(os.Stderr, f)
			closeFn = func() { f.Close() }
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closeFn
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log, closeLog := newLogger(cfg)
	defer closeLog()

	store, err := catalog.Open(cfg.DatabasePath(), log)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.SeedSettings(ctx, cfg.Defaults.Settings); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}
	if err := lifecycle.RepairAfterCrash(ctx, store, cfg, log); err != nil {
		return fmt.Errorf("crash repair: %w", err)
	}
	missing := lifecycle.CheckDependencies(log)

	hub := ws.NewHub(log)
	defer hub.Close()

	embedder, detector, faceDetector, transcriber := buildBackends(ctx, cfg, store, log)

	planner := search.NewPlanner(store, cfg, log, embedder)
	pipe := pipeline.New(pipeline.Options{
		Store:        store,
		Config:       cfg,
		Log:          log,
		Events:       hub,
		Embedder:     embedder,
		Detector:     detector,
		FaceDetector: faceDetector,
		Transcriber:  transcriber,
		Shards:       planner.Shards(),
	})
	sched := pipeline.NewScheduler(store, pipe, log)
	sched.Start(ctx)
	defer sched.Close()

	deps := handlers.Deps{
		Config:    cfg,
		Store:     store,
		Log:       log,
		Events:    hub,
		Planner:   planner,
		Scheduler: sched,
		Scanner:   scanner.New(store, cfg, log),
		Learner:   facerec.NewLearner(store, log),
		Backfill:  pipe,
		Missing:   missing,
		Shutdown:  stop,
	}
	server := web.NewServer(deps, hub)

	lock := lifecycle.Lockfile{
		Port:       cfg.Port,
		Token:      cfg.AuthToken,
		EngineUUID: uuid.NewString(),
		ParentPID:  cfg.ParentPID,
	}
	owner, err := lifecycle.AcquireLockfile(cfg.LockfilePath(), &lock)
	if err != nil {
		return fmt.Errorf("acquiring lockfile: %w", err)
	}
	if owner != 0 {
		log.Warn("replaced lockfile of a live engine instance", "pid", owner)
	}
	defer lifecycle.RemoveLockfile(cfg.LockfilePath())

	go lifecycle.NewParentMonitor(cfg.ParentPID, log, stop).Run(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	return nil
}

// buildBackends wires the model backends: the local runner covers every
// stage, with remote substitutes for object labels and transcription
// when keys are configured and offline mode is off.
func buildBackends(ctx context.Context, cfg *config.Config, store *catalog.Store, log *slog.Logger) (ml.Embedder, ml.Detector, ml.FaceDetector, ml.Transcriber) {
	runner := ml.NewRunner(cfg.Runner.URL, time.Duration(cfg.Runner.Timeout)*time.Second)
	if !runner.Healthy(ctx) {
		log.Warn("model runner unreachable, indexing will fail until it comes up",
			"url", cfg.Runner.URL)
	}

	var detector ml.Detector = runner
	var transcriber ml.Transcriber = runner

	offline := store.SettingBool(ctx, "offline_mode", false)
	if !offline {
		if cfg.Gemini.APIKey != "" {
			labeler, err := ml.NewGeminiLabeler(ctx, cfg.Gemini.APIKey, search.ObjectLabels())
			if err != nil {
				log.Warn("gemini labeler unavailable", "error", err)
			} else {
				log.Info("object detection via gemini")
				detector = labeler
			}
		}
		if cfg.OpenAI.Token != "" {
			log.Info("transcription via openai")
			transcriber = ml.NewOpenAITranscriber(cfg.OpenAI.Token)
		}
	}

	return runner, detector, runner, transcriber
}
