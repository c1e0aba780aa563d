package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/facerec"
	"github.com/gazehq/gaze-engine/internal/media"
	"github.com/gazehq/gaze-engine/internal/ml"
	"github.com/gazehq/gaze-engine/internal/vectors"
	"github.com/gazehq/gaze-engine/internal/web/ws"
)

// Events receives job lifecycle notifications, typically the websocket
// hub.
type Events interface {
	Broadcast(event any)
}

type noopEvents struct{}

func (noopEvents) Broadcast(any) {}

// Options wires a Pipeline's collaborators. Events may be nil.
type Options struct {
	Store        *catalog.Store
	Config       *config.Config
	Log          *slog.Logger
	Events       Events
	Embedder     ml.Embedder
	Detector     ml.Detector
	FaceDetector ml.FaceDetector
	Transcriber  ml.Transcriber
	Shards       *vectors.Cache
}

// Pipeline runs the per-item staged state machine.
type Pipeline struct {
	store        *catalog.Store
	cfg          *config.Config
	log          *slog.Logger
	events       Events
	embedder     ml.Embedder
	detector     ml.Detector
	faceDetector ml.FaceDetector
	transcriber  ml.Transcriber
	shards       *vectors.Cache
	learner      *facerec.Learner
}

func New(opts Options) *Pipeline {
	events := opts.Events
	if events == nil {
		events = noopEvents{}
	}
	return &Pipeline{
		store:        opts.Store,
		cfg:          opts.Config,
		log:          opts.Log.With("component", "pipeline"),
		events:       events,
		embedder:     opts.Embedder,
		detector:     opts.Detector,
		faceDetector: opts.FaceDetector,
		transcriber:  opts.Transcriber,
		shards:       opts.Shards,
		learner:      facerec.NewLearner(opts.Store, opts.Log),
	}
}

// runSettings is the settings snapshot one pipeline run operates under.
type runSettings struct {
	preset             string
	faceRecognition    bool
	frameInterval      float64
	minSilenceMs       int
	silenceThresholdDB int
	chunkSeconds       float64
}

func (p *Pipeline) loadSettings(ctx context.Context) runSettings {
	return runSettings{
		preset:             p.store.SettingString(ctx, "indexing_preset", PresetDeep),
		faceRecognition:    p.store.SettingBool(ctx, "face_recognition_enabled", false),
		frameInterval:      p.store.SettingFloat(ctx, "frame_interval_seconds", 2.0),
		minSilenceMs:       p.store.SettingInt(ctx, "transcription_min_silence_ms", 500),
		silenceThresholdDB: p.store.SettingInt(ctx, "transcription_silence_threshold_db", -35),
		chunkSeconds:       p.store.SettingFloat(ctx, "transcription_chunk_seconds", 30.0),
	}
}

func (p *Pipeline) thumbDir(mediaID string) string {
	return filepath.Join(p.cfg.ThumbnailsDir(), mediaID)
}

func (p *Pipeline) faceDir(mediaID string) string {
	return filepath.Join(p.cfg.FacesDir(), mediaID)
}

func (p *Pipeline) audioPath(mediaID string) string {
	return filepath.Join(p.cfg.TempDir(), mediaID+".wav")
}

// Process runs the primary stage list for one item. A nil return means
// the run reached a terminal state cleanly, including CANCELLED.
func (p *Pipeline) Process(ctx context.Context, mediaID string) error {
	m, err := p.store.GetMedia(ctx, mediaID)
	if err != nil {
		return err
	}
	log := p.log.With("media_id", m.MediaID, "path", m.Path)

	st := p.loadSettings(ctx)
	stages := Stages(m.MediaType, st.preset, st.faceRecognition)
	start := p.resumeIndex(m, stages)

	job := &catalog.Job{JobID: uuid.NewString(), VideoID: m.MediaID, Status: "PENDING"}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return err
	}

	if _, err := os.Stat(m.Path); err != nil {
		return p.fail(ctx, m, job, stages[start], fmt.Errorf("source file: %w", err))
	}

	if m.MediaType == catalog.MediaTypeVideo && m.DurationMs == nil {
		if err := p.probe(ctx, m); err != nil {
			log.Warn("probe failed", "error", err)
		}
	}
	if m.MediaType == catalog.MediaTypePhoto && m.Width == nil {
		if err := p.probePhoto(ctx, m); err != nil {
			log.Warn("photo probe failed", "error", err)
		}
	}

	if start > 0 {
		log.Info("resuming", "stage", stages[start])
	}

	for i := start; i < len(stages); i++ {
		stage := stages[i]

		if cancelled, err := p.checkCancelled(ctx, m, job); cancelled || err != nil {
			return err
		}

		progress := float64(i) / float64(len(stages))
		if err := p.enterStage(ctx, m, job, stage, progress); err != nil {
			return err
		}

		err := p.runStage(ctx, m, stage, st)
		if errors.Is(err, context.Canceled) {
			// The run ctx is dead; the status writes must still land.
			return p.cancel(context.WithoutCancel(ctx), m, job)
		}
		if catalog.IsBusy(err) {
			return p.requeue(ctx, m, job, stage)
		}
		if err != nil {
			return p.fail(ctx, m, job, stage, err)
		}

		progress = float64(i+1) / float64(len(stages))
		if err := p.completeStage(ctx, m, job, stage, progress); err != nil {
			return err
		}
	}

	if err := p.store.MarkMediaDone(ctx, m.MediaID); err != nil {
		return err
	}
	if err := p.store.FinishJob(ctx, job.JobID, catalog.StatusDone, nil, nil); err != nil {
		return err
	}
	p.events.Broadcast(ws.NewJobComplete(job.JobID, m.MediaID, catalog.StatusDone))
	log.Info("indexed", "stages", len(stages))
	return nil
}

// resumeIndex decides where a run starts. A last completed frame stage
// only counts if its thumbnails still exist on disk; wipe-derived can
// remove artifacts the catalog still references.
func (p *Pipeline) resumeIndex(m *catalog.Media, stages []string) int {
	if m.LastCompletedStage == nil {
		return 0
	}
	idx := stageIndex(stages, *m.LastCompletedStage)
	if idx < 0 {
		return 0
	}
	if frames, err := media.ListFrameFiles(p.thumbDir(m.MediaID)); err != nil || len(frames) == 0 {
		return 0
	}
	return idx + 1
}

func (p *Pipeline) runStage(ctx context.Context, m *catalog.Media, stage string, st runSettings) error {
	switch stage {
	case catalog.StatusExtractingFrames:
		return p.extractFrames(ctx, m, st)
	case catalog.StatusEmbedding:
		return p.embedFrames(ctx, m)
	case catalog.StatusDetecting:
		return p.detectObjects(ctx, m, st)
	case catalog.StatusDetectingFaces:
		return p.detectFaces(ctx, m)
	case catalog.StatusExtractingAudio:
		return p.extractAudio(ctx, m)
	case catalog.StatusTranscribing:
		return p.transcribe(ctx, m, st, nil)
	}
	return fmt.Errorf("unknown stage %q", stage)
}

// checkCancelled polls the media row before each stage; a status flip
// to CANCELLED is equivalent to an external task cancellation.
func (p *Pipeline) checkCancelled(ctx context.Context, m *catalog.Media, job *catalog.Job) (bool, error) {
	if ctx.Err() != nil {
		return true, p.cancel(context.WithoutCancel(ctx), m, job)
	}
	status, err := p.store.GetMediaStatus(ctx, m.MediaID)
	if err != nil {
		return false, err
	}
	if status == catalog.StatusCancelled {
		return true, p.cancel(ctx, m, job)
	}
	return false, nil
}

func (p *Pipeline) enterStage(ctx context.Context, m *catalog.Media, job *catalog.Job, stage string, progress float64) error {
	if err := p.store.SetMediaStatus(ctx, m.MediaID, stage, progress); err != nil {
		return err
	}
	if err := p.store.UpdateJobProgress(ctx, job.JobID, stage, &stage, progress, nil); err != nil {
		return err
	}
	p.events.Broadcast(ws.NewJobProgress(job.JobID, m.MediaID, stage, progress, ""))
	return nil
}

func (p *Pipeline) completeStage(ctx context.Context, m *catalog.Media, job *catalog.Job, stage string, progress float64) error {
	if err := p.store.SetLastCompletedStage(ctx, m.MediaID, stage); err != nil {
		return err
	}
	if err := p.store.SetMediaStatus(ctx, m.MediaID, stage, progress); err != nil {
		return err
	}
	if err := p.store.UpdateJobProgress(ctx, job.JobID, stage, &stage, progress, nil); err != nil {
		return err
	}
	p.events.Broadcast(ws.NewJobProgress(job.JobID, m.MediaID, stage, progress, ""))
	return nil
}

func (p *Pipeline) cancel(ctx context.Context, m *catalog.Media, job *catalog.Job) error {
	if err := p.store.SetMediaStatus(ctx, m.MediaID, catalog.StatusCancelled, 0); err != nil {
		return err
	}
	if err := p.store.FinishJob(ctx, job.JobID, catalog.StatusCancelled, nil, nil); err != nil {
		return err
	}
	p.events.Broadcast(ws.NewJobComplete(job.JobID, m.MediaID, catalog.StatusCancelled))
	p.log.Info("cancelled", "media_id", m.MediaID)
	return nil
}

// requeue is the cooperative-backoff path for persistent database
// contention: the item goes back to QUEUED with its resume marker
// intact and the scheduler retries later.
func (p *Pipeline) requeue(ctx context.Context, m *catalog.Media, job *catalog.Job, stage string) error {
	if err := p.store.WithRetry(ctx, func() error {
		return p.store.SetMediaStatus(ctx, m.MediaID, catalog.StatusQueued, 0)
	}); err != nil {
		return err
	}
	msg := "requeued after database contention"
	if err := p.store.FinishJob(ctx, job.JobID, catalog.StatusCancelled, nil, &msg); err != nil {
		return err
	}
	p.log.Warn("requeued busy item", "media_id", m.MediaID, "stage", stage)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, m *catalog.Media, job *catalog.Job, stage string, stageErr error) error {
	code := classifyError(stage, stageErr)
	message := stageErr.Error()
	if err := p.store.MarkMediaFailed(ctx, m.MediaID, code, message); err != nil {
		return err
	}
	if err := p.store.FinishJob(ctx, job.JobID, catalog.StatusFailed, &code, &message); err != nil {
		return err
	}
	p.events.Broadcast(ws.NewJobFailed(job.JobID, m.MediaID, code, message))
	p.log.Error("stage failed", "media_id", m.MediaID, "stage", stage, "code", code, "error", stageErr)
	return stageErr
}

// probe fills the technical and source-metadata columns plus the extra
// tag rows. Probe failures are non-fatal; frame extraction will surface
// a real ffmpeg problem.
func (p *Pipeline) probe(ctx context.Context, m *catalog.Media) error {
	res, err := media.Probe(ctx, m.Path)
	if err != nil {
		return err
	}
	m.DurationMs = res.DurationMs
	m.Width = res.Width
	m.Height = res.Height
	m.FPS = res.FPS
	m.VideoCodec = res.VideoCodec
	m.VideoBitrate = res.VideoBitrate
	m.AudioCodec = res.AudioCodec
	m.AudioChannels = res.AudioChannels
	m.AudioSampleRate = res.AudioSampleRate
	m.ContainerFormat = res.ContainerFormat
	m.Rotation = res.Rotation
	m.CreationTime = res.CreationTime
	m.CameraMake = res.CameraMake
	m.CameraModel = res.CameraModel
	m.GPSLat = res.GPSLat
	m.GPSLng = res.GPSLng
	if err := p.store.SetMediaProbe(ctx, m); err != nil {
		return err
	}
	if len(res.Extra) > 0 {
		if err := p.store.ReplaceMediaMetadata(ctx, m.MediaID, res.Extra); err != nil {
			return err
		}
	}

	// A .mov that probed longer than the live-photo cutoff is a real
	// video, not a motion component.
	if m.IsLivePhotoComponent && res.DurationMs != nil &&
		*res.DurationMs > constants.LivePhotoMaxDurationMs {
		return p.store.SetLivePhotoPair(ctx, m.MediaID, false, nil)
	}
	return nil
}

// probePhoto fills a photo's dimensions and EXIF source metadata. A
// photo with no EXIF block still gets its pixel dimensions.
func (p *Pipeline) probePhoto(ctx context.Context, m *catalog.Media) error {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding photo header: %w", err)
	}
	width, height := cfg.Width, cfg.Height

	if x := media.ReadEXIF(data); x != nil {
		if x.SwapsDimensions() {
			width, height = height, width
		}
		m.Rotation = x.RotationDegrees()
		m.CreationTime = x.CreationTime
		m.CameraMake = x.CameraMake
		m.CameraModel = x.CameraModel
		m.GPSLat = x.GPSLat
		m.GPSLng = x.GPSLng
	}
	m.Width, m.Height = &width, &height
	return p.store.SetMediaProbe(ctx, m)
}
