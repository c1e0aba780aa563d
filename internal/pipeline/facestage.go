package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/facerec"
	"github.com/gazehq/gaze-engine/internal/media"
)

// detectFaces finds faces in every frame, saves the padded crops,
// auto-recognizes against the learned profiles and replaces the item's
// face rows. Face counts of every matched person are recomputed.
func (p *Pipeline) detectFaces(ctx context.Context, m *catalog.Media) error {
	frames, err := p.store.FramesForVideo(ctx, m.MediaID)
	if err != nil {
		return err
	}

	profiles, err := p.learner.BuildProfiles(ctx)
	if err != nil {
		return err
	}
	pairs, err := p.store.PairThresholds(ctx)
	if err != nil {
		return err
	}
	recognizer := facerec.NewRecognizer(profiles, pairs)

	cropDir := p.faceDir(m.MediaID)
	if err := os.MkdirAll(cropDir, 0o755); err != nil {
		return err
	}

	var faces []catalog.Face
	touched := map[string]struct{}{}

	// Persons holding rows that ReplaceFaces is about to drop need a
	// recount too, or a re-index leaves their face_count stale.
	prior, err := p.store.FacesForVideo(ctx, m.MediaID)
	if err != nil {
		return err
	}
	for _, f := range prior {
		if f.PersonID != nil {
			touched[*f.PersonID] = struct{}{}
		}
	}

	for _, frame := range frames {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := os.ReadFile(frame.ThumbnailPath)
		if err != nil {
			return err
		}
		found, err := p.faceDetector.DetectFaces(ctx, data)
		if err != nil {
			return fmt.Errorf("detecting faces at %dms: %w", frame.TimestampMs, err)
		}

		for _, det := range found {
			if det.Confidence < constants.FaceDetThreshold {
				continue
			}
			if det.Box.W < constants.FaceMinSidePx || det.Box.H < constants.FaceMinSidePx {
				continue
			}

			face := catalog.Face{
				// Derived id keeps re-indexing idempotent.
				FaceID:      fmt.Sprintf("%s_face_%d", m.MediaID, len(faces)),
				VideoID:     m.MediaID,
				FrameID:     frame.FrameID,
				TimestampMs: frame.TimestampMs,
				BboxX:       det.Box.X,
				BboxY:       det.Box.Y,
				BboxW:       det.Box.W,
				BboxH:       det.Box.H,
				Confidence:  det.Confidence,
				Embedding:   facerec.EncodeEmbedding(det.Embedding),
				Age:         det.Age,
				Gender:      det.Gender,
			}

			cropPath := filepath.Join(cropDir, face.FaceID+".jpg")
			if err := media.CropFace(frame.ThumbnailPath, cropPath,
				det.Box.X, det.Box.Y, det.Box.W, det.Box.H); err != nil {
				p.log.Warn("face crop failed", "media_id", m.MediaID, "error", err)
			} else {
				face.CropPath = &cropPath
			}

			if match := recognizer.Recognize(det.Embedding); match != nil {
				source := catalog.SourceAuto
				now := time.Now().UnixMilli()
				face.PersonID = &match.PersonID
				face.AssignmentSource = &source
				face.AssignmentConfidence = &match.Confidence
				face.AssignedAtMs = &now
				touched[match.PersonID] = struct{}{}
			}
			faces = append(faces, face)
		}
	}

	if err := p.store.WithRetry(ctx, func() error {
		return p.store.ReplaceFaces(ctx, m.MediaID, faces)
	}); err != nil {
		return err
	}

	for personID := range touched {
		if err := p.store.RecountPersonFaces(ctx, personID); err != nil {
			return err
		}
	}
	return nil
}

// BackfillFaces runs the face stage over DONE items that have frames
// but no face rows yet. Returns how many items were processed.
func (p *Pipeline) BackfillFaces(ctx context.Context) (int, error) {
	if p.faceDetector == nil {
		return 0, fmt.Errorf("no face detector configured")
	}
	ids, err := p.store.DoneMediaMissingFaces(ctx)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		m, err := p.store.GetMedia(ctx, id)
		if err != nil {
			return processed, err
		}
		if err := p.detectFaces(ctx, m); err != nil {
			p.log.Warn("face backfill failed", "media_id", id, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}
