package facerec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/vectors"
)

// Profile is everything known about one person's face: a weighted
// centroid over assigned faces, the reference exemplars, and negative
// exemplars ("not this person").
type Profile struct {
	PersonID   string
	Mode       string
	Centroid   []float32
	References [][]float32
	Negatives  [][]float32
}

// Learner builds profiles from the catalog's assignment state.
type Learner struct {
	store *catalog.Store
	log   *slog.Logger
}

func NewLearner(store *catalog.Store, log *slog.Logger) *Learner {
	return &Learner{store: store, log: log.With("component", "facerec")}
}

// sourceWeight maps assignment provenance to centroid weight. Reference
// faces count most, manual confirmations next, auto and legacy least.
func sourceWeight(source *string) float64 {
	if source == nil {
		return constants.WeightAuto
	}
	switch *source {
	case catalog.SourceReference:
		return constants.WeightReference
	case catalog.SourceManual:
		return constants.WeightManual
	default:
		return constants.WeightAuto
	}
}

// BuildProfiles loads every person with at least one embedded face and
// computes their profiles.
func (l *Learner) BuildProfiles(ctx context.Context) (map[string]*Profile, error) {
	persons, err := l.store.ListPersons(ctx)
	if err != nil {
		return nil, err
	}

	assigned := true
	faces, err := l.store.FacesWithEmbeddings(ctx, &assigned)
	if err != nil {
		return nil, err
	}

	type accum struct {
		sum    []float64
		weight float64
	}
	accums := map[string]*accum{}
	byFaceID := map[string][]float32{}

	for i := range faces {
		face := &faces[i]
		emb := DecodeEmbedding(face.Embedding)
		if emb == nil || face.PersonID == nil {
			continue
		}
		byFaceID[face.FaceID] = emb

		a := accums[*face.PersonID]
		if a == nil {
			a = &accum{sum: make([]float64, len(emb))}
			accums[*face.PersonID] = a
		}
		if len(a.sum) != len(emb) {
			l.log.Warn("embedding dimension mismatch", "face", face.FaceID)
			continue
		}
		w := sourceWeight(face.AssignmentSource)
		for j, v := range emb {
			a.sum[j] += float64(v) * w
		}
		a.weight += w
	}

	profiles := map[string]*Profile{}
	for _, person := range persons {
		a := accums[person.PersonID]
		if a == nil || a.weight == 0 {
			continue
		}
		centroid := make([]float32, len(a.sum))
		for j, v := range a.sum {
			centroid[j] = float32(v / a.weight)
		}
		p := &Profile{
			PersonID: person.PersonID,
			Mode:     person.RecognitionMode,
			Centroid: centroid,
		}

		refs, err := l.store.FaceReferences(ctx, person.PersonID)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if emb, ok := byFaceID[ref.FaceID]; ok {
				p.References = append(p.References, emb)
				continue
			}
			// Reference faces may sit on re-indexed items; fetch directly.
			face, err := l.store.GetFace(ctx, ref.FaceID)
			if err != nil {
				continue
			}
			if emb := DecodeEmbedding(face.Embedding); emb != nil {
				p.References = append(p.References, emb)
			}
		}

		negs, err := l.store.FaceNegatives(ctx, person.PersonID)
		if err != nil {
			return nil, err
		}
		for _, neg := range negs {
			face, err := l.store.GetFace(ctx, neg.FaceID)
			if err != nil {
				continue
			}
			if emb := DecodeEmbedding(face.Embedding); emb != nil {
				p.Negatives = append(p.Negatives, emb)
			}
		}

		profiles[person.PersonID] = p
	}
	return profiles, nil
}

// PickThumbnail selects the assigned face nearest the person's centroid
// as the display face.
func (l *Learner) PickThumbnail(ctx context.Context, personID string) error {
	faces, err := l.store.FacesForPerson(ctx, personID)
	if err != nil {
		return err
	}
	embedded := make([]catalog.Face, 0, len(faces))
	for _, f := range faces {
		if len(f.Embedding) > 0 {
			embedded = append(embedded, f)
		}
	}
	if len(embedded) == 0 {
		return l.store.SetPersonThumbnail(ctx, personID, nil)
	}

	sum := make([]float64, len(DecodeEmbedding(embedded[0].Embedding)))
	decoded := make([][]float32, len(embedded))
	for i, f := range embedded {
		emb := DecodeEmbedding(f.Embedding)
		decoded[i] = emb
		if len(emb) != len(sum) {
			continue
		}
		for j, v := range emb {
			sum[j] += float64(v)
		}
	}
	centroid := make([]float32, len(sum))
	for j, v := range sum {
		centroid[j] = float32(v / float64(len(embedded)))
	}

	bestID := embedded[0].FaceID
	bestSim := -2.0
	for i, f := range embedded {
		if decoded[i] == nil {
			continue
		}
		if sim := vectors.CosineSimilarity(centroid, decoded[i]); sim > bestSim {
			bestSim = sim
			bestID = f.FaceID
		}
	}
	return l.store.SetPersonThumbnail(ctx, personID, &bestID)
}

// RecordReassignment captures everything a manual correction teaches:
// the face was not fromPersonID (negative exemplar), the two persons
// are confusable (pair threshold bump), and the face now belongs to
// toPersonID with manual provenance. Face counts and thumbnails of both
// persons are refreshed.
func (l *Learner) RecordReassignment(ctx context.Context, faceID string, fromPersonID, toPersonID *string) error {
	// Only a real person-to-different-person correction is negative
	// evidence; confirms and unassigns teach nothing about fromPersonID.
	corrected := fromPersonID != nil && toPersonID != nil && *fromPersonID != *toPersonID
	if corrected {
		if err := l.store.AddFaceNegative(ctx, faceID, *fromPersonID); err != nil {
			return err
		}
		if err := l.store.BumpPairThreshold(ctx, *fromPersonID, *toPersonID,
			constants.PairThresholdInit, constants.PairThresholdStep, constants.PairThresholdCap); err != nil {
			return err
		}
	}

	if toPersonID != nil {
		confidence := 1.0
		if err := l.store.AssignFace(ctx, faceID, toPersonID, catalog.SourceManual, &confidence); err != nil {
			return err
		}
	} else {
		if err := l.store.AssignFace(ctx, faceID, nil, "", nil); err != nil {
			return err
		}
	}

	for _, pid := range []*string{fromPersonID, toPersonID} {
		if pid == nil {
			continue
		}
		if err := l.store.RecountPersonFaces(ctx, *pid); err != nil {
			return err
		}
		if err := l.PickThumbnail(ctx, *pid); err != nil {
			return fmt.Errorf("refreshing thumbnail: %w", err)
		}
	}
	return nil
}
