// Package vectors stores per-item frame embeddings as small on-disk
// HNSW graphs. Each indexed item gets one shard file keyed by frame
// index, so a similarity query only loads the shards it touches.
package vectors

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

const (
	// maxNeighbors (M) is the maximum number of neighbors per node.
	maxNeighbors = 16
)

// Shard is the embedding index of a single item. Node keys are frame
// indexes into the item's frames table.
type Shard struct {
	graph      *hnsw.Graph[int]
	savedGraph *hnsw.SavedGraph[int]
	mu         sync.RWMutex
}

// Hit is one nearest-neighbor result with its cosine similarity.
type Hit struct {
	FrameIndex int
	Similarity float64
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build creates a shard from the full set of frame embeddings of one
// item. Embeddings shorter than expected are skipped rather than
// poisoning the graph.
func Build(embeddings map[int][]float32) *Shard {
	g := newGraph()
	for frameIndex, emb := range embeddings {
		if len(emb) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(frameIndex, emb))
	}
	return &Shard{graph: g}
}

// Search returns the k nearest frames to the query with their cosine
// similarity, best first.
func (s *Shard) Search(query []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil && s.savedGraph == nil {
		return nil, errors.New("shard not initialized")
	}

	var neighbors []hnsw.Node[int]
	if s.savedGraph != nil {
		neighbors = s.savedGraph.Search(query, k)
	} else {
		neighbors = s.graph.Search(query, k)
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		if len(n.Value) == 0 {
			continue
		}
		hits = append(hits, Hit{
			FrameIndex: n.Key,
			Similarity: CosineSimilarity(query, n.Value),
		})
	}
	return hits, nil
}

// Len returns the number of indexed frames.
func (s *Shard) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.savedGraph != nil {
		return s.savedGraph.Len()
	}
	if s.graph != nil {
		return s.graph.Len()
	}
	return 0
}

// Save writes the shard to its file, replacing any previous version.
func (s *Shard) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating shard file: %w", err)
	}
	defer f.Close()

	if s.savedGraph != nil {
		if err := s.savedGraph.Export(f); err != nil {
			return fmt.Errorf("exporting shard graph: %w", err)
		}
		return nil
	}
	if s.graph == nil {
		return errors.New("shard has no graph to save")
	}
	if err := s.graph.Export(f); err != nil {
		return fmt.Errorf("exporting shard graph: %w", err)
	}
	return nil
}

// Load reads a shard file from disk.
func Load(path string) (*Shard, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("shard file: %w", err)
	}
	saved, err := hnsw.LoadSavedGraph[int](path)
	if err != nil {
		return nil, fmt.Errorf("loading shard graph: %w", err)
	}
	return &Shard{savedGraph: saved}, nil
}

// ShardPath returns the shard file of one item under the shards
// directory.
func ShardPath(dir, mediaID string) string {
	return filepath.Join(dir, mediaID+".shard")
}

// Remove deletes the shard file of an item if present.
func Remove(dir, mediaID string) error {
	err := os.Remove(ShardPath(dir, mediaID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing shard: %w", err)
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// clamped to [-1, 1]. Mismatched or zero vectors score -1.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}
