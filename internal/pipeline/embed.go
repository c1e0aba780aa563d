package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/media"
	"github.com/gazehq/gaze-engine/internal/vectors"
)

// embedFrames embeds every frame thumbnail and commits the item's
// vector shard, keyed by frame index so search hits map back to frame
// rows.
func (p *Pipeline) embedFrames(ctx context.Context, m *catalog.Media) error {
	framePaths, err := media.ListFrameFiles(p.thumbDir(m.MediaID))
	if err != nil {
		return err
	}
	if len(framePaths) == 0 {
		return fmt.Errorf("no frames on disk for %s", m.MediaID)
	}

	embeddings := make(map[int][]float32, len(framePaths))
	for i, path := range framePaths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		emb, err := p.embedder.EmbedImage(ctx, data)
		if err != nil {
			return fmt.Errorf("embedding frame %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	shard := vectors.Build(embeddings)
	if err := shard.Save(vectors.ShardPath(p.cfg.ShardsDir(), m.MediaID)); err != nil {
		return fmt.Errorf("saving shard: %w", err)
	}
	if p.shards != nil {
		p.shards.Invalidate(m.MediaID)
	}
	return nil
}
