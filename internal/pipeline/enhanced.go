package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/media"
	"github.com/gazehq/gaze-engine/internal/ml"
	"github.com/gazehq/gaze-engine/internal/web/ws"
)

// Enhance runs the post-DONE audio stages for a deep-preset video. The
// item keeps its DONE status throughout; only the job row and events
// reflect enhanced progress.
func (p *Pipeline) Enhance(ctx context.Context, mediaID string) error {
	m, err := p.store.GetMedia(ctx, mediaID)
	if err != nil {
		return err
	}
	st := p.loadSettings(ctx)
	stages := EnhancedStages(m.MediaType, st.preset)
	if stages == nil {
		return nil
	}
	if p.transcriber == nil {
		p.log.Warn("no transcriber configured, skipping enhanced stages", "media_id", mediaID)
		return nil
	}

	job := &catalog.Job{JobID: uuid.NewString(), VideoID: m.MediaID, Status: "PENDING"}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return err
	}

	for i, stage := range stages {
		if ctx.Err() != nil {
			return p.finishEnhanced(context.WithoutCancel(ctx), m, job, catalog.StatusCancelled)
		}
		progress := float64(i) / float64(len(stages))
		if err := p.store.UpdateJobProgress(ctx, job.JobID, stage, &stage, progress, nil); err != nil {
			return err
		}
		p.events.Broadcast(ws.NewJobProgress(job.JobID, m.MediaID, stage, progress, ""))

		var stageErr error
		if stage == catalog.StatusTranscribing {
			stageErr = p.transcribe(ctx, m, st, func(done, total int) {
				frac := (float64(i) + float64(done)/float64(total)) / float64(len(stages))
				p.events.Broadcast(ws.NewJobProgress(job.JobID, m.MediaID, stage, frac, ""))
			})
		} else {
			stageErr = p.runStage(ctx, m, stage, st)
		}
		if stageErr != nil {
			if errors.Is(stageErr, context.Canceled) {
				return p.finishEnhanced(context.WithoutCancel(ctx), m, job, catalog.StatusCancelled)
			}
			code := classifyError(stage, stageErr)
			message := stageErr.Error()
			if err := p.store.FinishJob(ctx, job.JobID, catalog.StatusFailed, &code, &message); err != nil {
				return err
			}
			p.events.Broadcast(ws.NewJobFailed(job.JobID, m.MediaID, code, message))
			return stageErr
		}
	}

	os.Remove(p.audioPath(m.MediaID))
	return p.finishEnhanced(ctx, m, job, catalog.StatusDone)
}

func (p *Pipeline) finishEnhanced(ctx context.Context, m *catalog.Media, job *catalog.Job, status string) error {
	if err := p.store.FinishJob(ctx, job.JobID, status, nil, nil); err != nil {
		return err
	}
	p.events.Broadcast(ws.NewJobComplete(job.JobID, m.MediaID, status))
	return nil
}

// extractAudio produces the item's mono 16 kHz WAV at its deterministic
// temp path. A zero-byte leftover counts as missing.
func (p *Pipeline) extractAudio(ctx context.Context, m *catalog.Media) error {
	dest := p.audioPath(m.MediaID)
	if info, err := os.Stat(dest); err == nil {
		if info.Size() > 0 {
			return nil
		}
		os.Remove(dest)
	}
	if err := media.ExtractAudio(ctx, m.Path, dest); err != nil {
		return err
	}
	info, err := os.Stat(dest)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		os.Remove(dest)
		return fmt.Errorf("ffmpeg produced empty audio for %s", m.Path)
	}
	return nil
}

// transcribe chunks the audio along silence boundaries, transcribes
// each chunk and replaces the item's transcript rows. A single chunk
// failure is logged and skipped. onChunk, when set, reports per-chunk
// progress.
func (p *Pipeline) transcribe(ctx context.Context, m *catalog.Media, st runSettings, onChunk func(done, total int)) error {
	audio := p.audioPath(m.MediaID)
	if _, err := os.Stat(audio); err != nil {
		if err := p.extractAudio(ctx, m); err != nil {
			return err
		}
	}

	var totalSeconds float64
	if m.DurationMs != nil {
		totalSeconds = float64(*m.DurationMs) / 1000
	}
	chunks, err := media.DetectSpeech(ctx, audio,
		totalSeconds, float64(st.minSilenceMs)/1000, st.silenceThresholdDB)
	if err != nil {
		p.log.Warn("silence detection failed, transcribing whole file",
			"media_id", m.MediaID, "error", err)
		chunks = []media.SpeechChunk{{Start: 0, End: totalSeconds}}
	}
	if len(chunks) == 0 {
		chunks = []media.SpeechChunk{{Start: 0, End: totalSeconds}}
	}
	chunks = media.SplitLongChunks(chunks,
		constants.TranscriptionMinChunkSeconds, st.chunkSeconds)

	var segments []catalog.TranscriptSegment
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if onChunk != nil {
			onChunk(i, len(chunks))
		}
		if chunk.End-chunk.Start < constants.TranscriptionMinChunkSeconds {
			continue
		}

		parts, err := p.transcribeChunk(ctx, audio, chunk)
		if err != nil {
			p.log.Warn("chunk transcription failed",
				"media_id", m.MediaID, "chunk", i, "error", err)
			continue
		}
		for _, part := range parts {
			segments = append(segments, catalog.TranscriptSegment{
				VideoID:    m.MediaID,
				StartMs:    part.StartMs,
				EndMs:      part.EndMs,
				Text:       part.Text,
				Confidence: part.Confidence,
			})
		}
	}

	return p.store.WithRetry(ctx, func() error {
		return p.store.ReplaceTranscript(ctx, m.MediaID, segments)
	})
}

func (p *Pipeline) transcribeChunk(ctx context.Context, audio string, chunk media.SpeechChunk) ([]ml.TranscriptChunk, error) {
	tmp, err := os.CreateTemp(p.cfg.TempDir(), "chunk_*.wav")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := media.CutSegment(ctx, audio, tmpPath, chunk.Start, chunk.End-chunk.Start); err != nil {
		return nil, err
	}
	return p.transcriber.Transcribe(ctx, tmpPath, int64(chunk.Start*1000))
}
