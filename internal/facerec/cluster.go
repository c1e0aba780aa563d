package facerec

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/vectors"
)

// cluster accumulates members and keeps a running centroid.
type cluster struct {
	id    string
	sum   []float64
	count int
	faces []string
}

func (c *cluster) centroid() []float32 {
	out := make([]float32, len(c.sum))
	for i, v := range c.sum {
		out[i] = float32(v / float64(c.count))
	}
	return out
}

func (c *cluster) add(faceID string, emb []float32) {
	if c.sum == nil {
		c.sum = make([]float64, len(emb))
	}
	for i, v := range emb {
		c.sum[i] += float64(v)
	}
	c.count++
	c.faces = append(c.faces, faceID)
}

// ClusterUnassigned groups faces without a person into clusters by
// greedy agglomeration: each face joins the closest existing cluster
// above the similarity threshold, or starts a new one. Cluster IDs are
// written back to the faces; the number of clusters is returned.
func (l *Learner) ClusterUnassigned(ctx context.Context) (int, error) {
	assigned := false
	faces, err := l.store.FacesWithEmbeddings(ctx, &assigned)
	if err != nil {
		return 0, err
	}

	type embedded struct {
		faceID string
		emb    []float32
	}
	items := make([]embedded, 0, len(faces))
	for i := range faces {
		if emb := DecodeEmbedding(faces[i].Embedding); emb != nil {
			items = append(items, embedded{faceID: faces[i].FaceID, emb: emb})
		}
	}
	// Deterministic input order so re-clustering is stable.
	sort.Slice(items, func(i, j int) bool { return items[i].faceID < items[j].faceID })

	var clusters []*cluster
	for _, item := range items {
		var best *cluster
		bestSim := -2.0
		for _, c := range clusters {
			if sim := vectors.CosineSimilarity(item.emb, c.centroid()); sim > bestSim {
				bestSim = sim
				best = c
			}
		}
		if best == nil || bestSim < constants.RecognitionBaseThreshold {
			best = &cluster{id: uuid.NewString()}
			clusters = append(clusters, best)
		}
		best.add(item.faceID, item.emb)
	}

	for _, c := range clusters {
		for _, faceID := range c.faces {
			id := c.id
			if err := l.store.SetFaceCluster(ctx, faceID, &id); err != nil {
				return 0, err
			}
		}
	}
	l.log.Info("clustered unassigned faces", "faces", len(items), "clusters", len(clusters))
	return len(clusters), nil
}

// Suggestion proposes a person for one unassigned face.
type Suggestion struct {
	Face       catalog.Face `json:"face"`
	PersonID   string       `json:"person_id"`
	Confidence float64      `json:"confidence"`
}

// Suggest scores every unassigned face against the current profiles
// and returns the ten best matches above the suggestion threshold.
func (l *Learner) Suggest(ctx context.Context) ([]Suggestion, error) {
	profiles, err := l.BuildProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	pairs, err := l.store.PairThresholds(ctx)
	if err != nil {
		return nil, err
	}
	recognizer := NewRecognizer(profiles, pairs)

	assigned := false
	faces, err := l.store.FacesWithEmbeddings(ctx, &assigned)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	for i := range faces {
		emb := DecodeEmbedding(faces[i].Embedding)
		if emb == nil {
			continue
		}
		match := recognizer.Recognize(emb)
		if match == nil || match.Confidence < constants.SuggestionThreshold {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Face:       faces[i],
			PersonID:   match.PersonID,
			Confidence: match.Confidence,
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > 10 {
		suggestions = suggestions[:10]
	}
	return suggestions, nil
}
