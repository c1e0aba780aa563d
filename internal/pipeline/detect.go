package pipeline

import (
	"context"
	"os"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
)

// detectObjects runs the object detector over every frame and replaces
// the item's detection rows in one transaction.
func (p *Pipeline) detectObjects(ctx context.Context, m *catalog.Media, st runSettings) error {
	frames, err := p.store.FramesForVideo(ctx, m.MediaID)
	if err != nil {
		return err
	}

	var dets []catalog.Detection
	for _, frame := range frames {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := os.ReadFile(frame.ThumbnailPath)
		if err != nil {
			return err
		}
		found, err := p.detector.DetectObjects(ctx, data)
		if err != nil {
			return err
		}
		for _, d := range found {
			if d.Confidence < constants.DetectionMinConfidence {
				continue
			}
			det := catalog.Detection{
				VideoID:     m.MediaID,
				FrameID:     frame.FrameID,
				TimestampMs: frame.TimestampMs,
				Label:       d.Label,
				Confidence:  d.Confidence,
			}
			if d.Box != nil {
				det.BboxX, det.BboxY = &d.Box.X, &d.Box.Y
				det.BboxW, det.BboxH = &d.Box.W, &d.Box.H
			}
			dets = append(dets, det)
		}
	}

	return p.store.WithRetry(ctx, func() error {
		return p.store.ReplaceDetections(ctx, m.MediaID, dets)
	})
}
