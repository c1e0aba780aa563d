package facerec

import (
	"math"
	"testing"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	in := []float32{0.5, -1.25, 3.75, 0}
	out := DecodeEmbedding(EncodeEmbedding(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}

	if DecodeEmbedding(nil) != nil {
		t.Error("nil blob should decode to nil")
	}
	if DecodeEmbedding([]byte{1, 2, 3}) != nil {
		t.Error("truncated blob should decode to nil")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"José García":  "jose garcia",
		"Anne-Marie":   "anne marie",
		"  Bob  Ross ": "bob ross",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

// axis returns a unit vector with a single component plus a slight tilt
// toward a second axis, so similarities are controllable.
func tilted(main, other int, tilt float64) []float32 {
	v := make([]float32, 8)
	v[main] = float32(math.Sqrt(1 - tilt*tilt))
	v[other] = float32(tilt)
	return v
}

func TestRecognize_CentroidMode(t *testing.T) {
	profiles := map[string]*Profile{
		"p-ada": {PersonID: "p-ada", Mode: catalog.ModeAverage, Centroid: tilted(0, 1, 0)},
		"p-bob": {PersonID: "p-bob", Mode: catalog.ModeAverage, Centroid: tilted(1, 0, 0)},
	}
	r := NewRecognizer(profiles, nil)

	match := r.Recognize(tilted(0, 1, 0.1))
	if match == nil || match.PersonID != "p-ada" {
		t.Fatalf("expected p-ada, got %+v", match)
	}
	if match.Score < 0.99 {
		t.Errorf("near-identical vector should score high, got %v", match.Score)
	}

	// Orthogonal vector matches nobody.
	if got := r.Recognize(tilted(5, 6, 0)); got != nil {
		t.Errorf("orthogonal embedding should not match, got %+v", got)
	}
}

func TestRecognize_WeightedModeBlendsReferences(t *testing.T) {
	centroid := tilted(0, 1, 0)
	ref := tilted(1, 0, 0)
	profiles := map[string]*Profile{
		"p": {PersonID: "p", Mode: catalog.ModeWeighted, Centroid: centroid, References: [][]float32{ref}},
	}
	r := NewRecognizer(profiles, nil)

	// Query equals the reference: weighted = 0.6*1.0 + 0.4*cos(ref, centroid)=0.6.
	// That is below the 0.65 base threshold, so no match.
	if got := r.Recognize(ref); got != nil {
		t.Errorf("expected no match at 0.6, got %+v", got)
	}

	// Query equals the centroid: weighted = 0.6*0 + 0.4*1 = 0.4, no match;
	// but in average mode the same query scores 1.0.
	profiles["p"].Mode = catalog.ModeAverage
	if got := NewRecognizer(profiles, nil).Recognize(centroid); got == nil {
		t.Error("average mode should match the centroid")
	}
}

func TestRecognize_ReferenceOnlyMode(t *testing.T) {
	profiles := map[string]*Profile{
		"p": {
			PersonID:   "p",
			Mode:       catalog.ModeReferenceOnly,
			Centroid:   tilted(0, 1, 0),
			References: [][]float32{tilted(1, 0, 0)},
		},
	}
	r := NewRecognizer(profiles, nil)

	if got := r.Recognize(tilted(1, 0, 0)); got == nil || got.Score < 0.99 {
		t.Errorf("reference-only should score against the reference, got %+v", got)
	}
	if got := r.Recognize(tilted(0, 1, 0)); got != nil {
		t.Errorf("centroid match should not count in reference-only mode, got %+v", got)
	}
}

func TestRecognize_ReferenceOnlyWithoutReferencesSkipsPerson(t *testing.T) {
	centroid := tilted(1, 0, 0)
	profiles := map[string]*Profile{
		"p": {PersonID: "p", Mode: catalog.ModeReferenceOnly, Centroid: centroid},
	}
	if got := NewRecognizer(profiles, nil).Recognize(centroid); got != nil {
		t.Errorf("reference-only person without references must never match, got %+v", got)
	}
}

func TestRecognize_NegativePenalty(t *testing.T) {
	query := tilted(0, 1, 0)
	profiles := map[string]*Profile{
		"p": {PersonID: "p", Mode: catalog.ModeAverage, Centroid: query},
	}

	if got := NewRecognizer(profiles, nil).Recognize(query); got == nil {
		t.Fatal("sanity: should match without negatives")
	}

	// A negative exemplar identical to the query collapses the score.
	profiles["p"].Negatives = [][]float32{query}
	if got := NewRecognizer(profiles, nil).Recognize(query); got != nil {
		t.Errorf("similarity 1.0 to a negative should kill the match, got %+v", got)
	}
}

func TestRecognize_PairThresholdRaisesBar(t *testing.T) {
	profiles := map[string]*Profile{
		"p-a": {PersonID: "p-a", Mode: catalog.ModeAverage, Centroid: tilted(0, 1, 0)},
		"p-b": {PersonID: "p-b", Mode: catalog.ModeAverage, Centroid: tilted(0, 1, 0.73)},
	}

	probe := tilted(0, 1, 0.3) // cos to p-a centroid ~0.95, passes the base threshold

	noPairs := NewRecognizer(profiles, nil).Recognize(probe)
	if noPairs == nil || noPairs.PersonID != "p-a" {
		t.Fatalf("sanity: expected p-a, got %+v", noPairs)
	}

	pairs := map[[2]string]float64{{"p-a", "p-b"}: 0.99}
	if got := NewRecognizer(profiles, pairs).Recognize(probe); got != nil {
		t.Errorf("learned pair threshold should block the match, got %+v", got)
	}
}

func TestRecognize_MarginLowersConfidence(t *testing.T) {
	// Two nearly identical candidates: tiny margin, confidence dips.
	profiles := map[string]*Profile{
		"p-a": {PersonID: "p-a", Mode: catalog.ModeAverage, Centroid: tilted(0, 1, 0.10)},
		"p-b": {PersonID: "p-b", Mode: catalog.ModeAverage, Centroid: tilted(0, 1, 0.12)},
	}
	r := NewRecognizer(profiles, nil)

	match := r.Recognize(tilted(0, 1, 0.11))
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Confidence >= match.Score {
		t.Errorf("ambiguous match should discount confidence: score %v, confidence %v",
			match.Score, match.Confidence)
	}
}

func TestRecognize_EmptyInputs(t *testing.T) {
	if NewRecognizer(nil, nil).Recognize([]float32{1}) != nil {
		t.Error("no profiles should mean no match")
	}
	r := NewRecognizer(map[string]*Profile{"p": {Centroid: []float32{1}}}, nil)
	if r.Recognize(nil) != nil {
		t.Error("empty embedding should mean no match")
	}
}
