package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/media"
)

// extractFrames produces the item's frame thumbnails plus the grid
// sibling of the first frame, then replaces the frame rows with
// dominant colors attached.
func (p *Pipeline) extractFrames(ctx context.Context, m *catalog.Media, st runSettings) error {
	destDir := p.thumbDir(m.MediaID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	var framePaths []string
	var err error
	if m.MediaType == catalog.MediaTypePhoto {
		framePaths, err = p.photoFrame(ctx, m, destDir)
	} else {
		framePaths, err = media.ExtractFrames(ctx, m.Path, destDir, st.frameInterval)
	}
	if err != nil {
		return err
	}
	if len(framePaths) == 0 {
		return fmt.Errorf("no frames produced for %s", m.Path)
	}

	if m.MediaType == catalog.MediaTypeVideo {
		if err := p.writeGridThumb(framePaths[0]); err != nil {
			p.log.Warn("grid thumbnail failed", "media_id", m.MediaID, "error", err)
		}
	}

	frames := make([]catalog.Frame, 0, len(framePaths))
	for i, path := range framePaths {
		frame := catalog.Frame{
			// Derived id keeps re-indexing idempotent.
			FrameID:       fmt.Sprintf("%s_frame_%d", m.MediaID, i),
			VideoID:       m.MediaID,
			FrameIndex:    i,
			TimestampMs:   int64(float64(i) * st.frameInterval * 1000),
			ThumbnailPath: path,
		}
		if m.MediaType == catalog.MediaTypePhoto {
			frame.TimestampMs = 0
		}
		// A single frame's color failure persists a null-colors row.
		if colors := frameColors(path); colors != nil {
			frame.Colors = colors
		}
		frames = append(frames, frame)
	}
	return p.store.WithRetry(ctx, func() error {
		return p.store.ReplaceFrames(ctx, m.MediaID, frames)
	})
}

// photoFrame writes the single EXIF-oriented thumbnail pair for a
// photo. Source metadata is already on the row from the photo probe.
func (p *Pipeline) photoFrame(ctx context.Context, m *catalog.Media, destDir string) ([]string, error) {
	dest := filepath.Join(destDir, fmt.Sprintf(media.FrameFilePattern, 1))
	if _, err := media.WriteThumbnailPair(m.Path, dest); err != nil {
		return nil, err
	}
	return []string{dest}, nil
}

func (p *Pipeline) writeGridThumb(firstFramePath string) error {
	data, err := os.ReadFile(firstFramePath)
	if err != nil {
		return err
	}
	grid, err := media.ResizeJPEG(data, media.GridPreset)
	if err != nil {
		return err
	}
	return os.WriteFile(media.GridPath(firstFramePath), grid, 0o644)
}

func frameColors(path string) *string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	colors, err := media.DominantColorsFromFile(data)
	if err != nil || len(colors) == 0 {
		return nil
	}
	encoded, err := json.Marshal(colors)
	if err != nil {
		return nil
	}
	s := string(encoded)
	return &s
}
