package facerec

import (
	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/vectors"
)

// Match is a recognition result: the best person with the raw
// similarity score and the margin-adjusted confidence.
type Match struct {
	PersonID   string  `json:"person_id"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Recognizer scores a face embedding against a profile snapshot. It is
// immutable once built, so one instance can serve a whole pipeline run.
type Recognizer struct {
	profiles map[string]*Profile
	pairs    map[[2]string]float64
	base     float64
}

func NewRecognizer(profiles map[string]*Profile, pairs map[[2]string]float64) *Recognizer {
	return &Recognizer{
		profiles: profiles,
		pairs:    pairs,
		base:     constants.RecognitionBaseThreshold,
	}
}

// score rates one embedding against a profile per its recognition mode,
// then applies the negative-exemplar penalty.
func (r *Recognizer) score(emb []float32, p *Profile) float64 {
	var s float64
	maxRef := -1.0
	for _, ref := range p.References {
		if sim := vectors.CosineSimilarity(emb, ref); sim > maxRef {
			maxRef = sim
		}
	}

	switch {
	case p.Mode == catalog.ModeReferenceOnly && len(p.References) > 0:
		s = maxRef
	case p.Mode == catalog.ModeWeighted && len(p.References) > 0:
		s = 0.6*maxRef + 0.4*vectors.CosineSimilarity(emb, p.Centroid)
	default:
		s = vectors.CosineSimilarity(emb, p.Centroid)
	}

	// The closer the face sits to a known negative, the harder the
	// score is pushed down.
	maxNeg := -1.0
	for _, neg := range p.Negatives {
		if sim := vectors.CosineSimilarity(emb, neg); sim > maxNeg {
			maxNeg = sim
		}
	}
	switch {
	case maxNeg > 0.7:
		s *= 1 - maxNeg
	case maxNeg > 0.5:
		s *= 1 - 0.5*maxNeg
	}
	return s
}

// Recognize returns the best matching person for an embedding, or nil
// when no person clears the effective threshold.
func (r *Recognizer) Recognize(emb []float32) *Match {
	if len(emb) == 0 || len(r.profiles) == 0 {
		return nil
	}

	best, second := "", ""
	s1, s2 := -2.0, -2.0
	for personID, p := range r.profiles {
		// A reference-only person with no references has opted out of
		// centroid matching; never fall back.
		if p.Mode == catalog.ModeReferenceOnly && len(p.References) == 0 {
			continue
		}
		s := r.score(emb, p)
		if s > s1 {
			second, s2 = best, s1
			best, s1 = personID, s
		} else if s > s2 {
			second, s2 = personID, s
		}
	}

	threshold := r.base
	// A learned pair threshold raises the bar when the top two
	// candidates have been confused before.
	if second != "" {
		if pt, ok := r.pairThreshold(best, second); ok && pt > threshold {
			threshold = pt
		}
	}
	if s1 < threshold {
		return nil
	}

	confidence := s1
	if second != "" {
		if margin := s1 - s2; margin < 0.1 {
			confidence = s1 * (0.7 + 3*margin)
		}
	}
	return &Match{PersonID: best, Score: s1, Confidence: confidence}
}

func (r *Recognizer) pairThreshold(a, b string) (float64, bool) {
	if b < a {
		a, b = b, a
	}
	t, ok := r.pairs[[2]string{a, b}]
	return t, ok
}
