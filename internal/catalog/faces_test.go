package catalog

import (
	"context"
	"testing"
)

func seedFaceFixture(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	mustCreateLibrary(t, store, "lib-1", "/a")
	mustInsertMedia(t, store, "m-1", "lib-1", "/a/clip.mp4", MediaTypeVideo)
	assertNoError(t, store.CreatePerson(ctx, &Person{PersonID: "p-ada", Name: "Ada"}))
	assertNoError(t, store.CreatePerson(ctx, &Person{PersonID: "p-bob", Name: "Bob"}))
	assertNoError(t, store.ReplaceFaces(ctx, "m-1", []Face{
		{FaceID: "f-1", VideoID: "m-1", TimestampMs: 1000, Confidence: 0.95, Embedding: []byte{1}, CreatedAtMs: 1},
		{FaceID: "f-2", VideoID: "m-1", TimestampMs: 3000, Confidence: 0.90, Embedding: []byte{2}, CreatedAtMs: 2},
		{FaceID: "f-3", VideoID: "m-1", TimestampMs: 9000, Confidence: 0.80, Embedding: []byte{3}, CreatedAtMs: 3},
	}))
}

func TestAssignFace_ProvenanceAndRecount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	pid := "p-ada"
	conf := 0.82
	assertNoError(t, store.AssignFace(ctx, "f-1", &pid, SourceAuto, &conf))
	assertNoError(t, store.AssignFace(ctx, "f-2", &pid, SourceManual, nil))
	assertNoError(t, store.RecountPersonFaces(ctx, "p-ada"))

	p, err := store.GetPerson(ctx, "p-ada")
	assertNoError(t, err)
	if p.FaceCount != 2 {
		t.Errorf("expected face_count 2, got %d", p.FaceCount)
	}

	f, err := store.GetFace(ctx, "f-1")
	assertNoError(t, err)
	if f.AssignmentSource == nil || *f.AssignmentSource != SourceAuto {
		t.Errorf("expected auto provenance, got %v", f.AssignmentSource)
	}

	// Clearing an assignment drops the provenance too.
	assertNoError(t, store.AssignFace(ctx, "f-1", nil, "", nil))
	f, err = store.GetFace(ctx, "f-1")
	assertNoError(t, err)
	if f.PersonID != nil || f.AssignmentSource != nil || f.AssignedAtMs != nil {
		t.Errorf("unassign left provenance behind: %+v", f)
	}
}

func TestReviewQueue_OnlyLowConfidenceAuto(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	pid := "p-ada"
	low, high := 0.60, 0.90
	assertNoError(t, store.AssignFace(ctx, "f-1", &pid, SourceAuto, &low))
	assertNoError(t, store.AssignFace(ctx, "f-2", &pid, SourceAuto, &high))
	assertNoError(t, store.AssignFace(ctx, "f-3", &pid, SourceManual, &low))

	queue, err := store.ReviewQueue(ctx, 0.75, 10)
	assertNoError(t, err)
	if len(queue) != 1 || queue[0].FaceID != "f-1" {
		t.Errorf("expected only the low-confidence auto face, got %+v", queue)
	}
}

func TestAssignCluster(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	cluster := "c-1"
	assertNoError(t, store.SetFaceCluster(ctx, "f-1", &cluster))
	assertNoError(t, store.SetFaceCluster(ctx, "f-2", &cluster))

	// Pre-assigned faces must not be stolen by a cluster assign.
	pid := "p-bob"
	assertNoError(t, store.AssignFace(ctx, "f-2", &pid, SourceManual, nil))

	moved, err := store.AssignCluster(ctx, "c-1", "p-ada", SourceManual)
	assertNoError(t, err)
	if moved != 1 {
		t.Errorf("expected 1 face moved, got %d", moved)
	}
	f, err := store.GetFace(ctx, "f-2")
	assertNoError(t, err)
	if f.PersonID == nil || *f.PersonID != "p-bob" {
		t.Errorf("cluster assign overwrote a manual assignment: %v", f.PersonID)
	}
}

func TestFaceReferences_UpsertWeight(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	assertNoError(t, store.AddFaceReference(ctx, "f-1", "p-ada", 3.0))
	assertNoError(t, store.AddFaceReference(ctx, "f-1", "p-ada", 5.0))

	refs, err := store.FaceReferences(ctx, "p-ada")
	assertNoError(t, err)
	if len(refs) != 1 || refs[0].Weight != 5.0 {
		t.Errorf("expected one reference with weight 5.0, got %+v", refs)
	}
}

func TestFaceNegatives_Dedupe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	assertNoError(t, store.AddFaceNegative(ctx, "f-1", "p-ada"))
	assertNoError(t, store.AddFaceNegative(ctx, "f-1", "p-ada"))

	negs, err := store.FaceNegatives(ctx, "p-ada")
	assertNoError(t, err)
	if len(negs) != 1 {
		t.Errorf("expected one negative, got %d", len(negs))
	}
}

func TestBumpPairThreshold_StepsAndCaps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	// Order of the pair must not matter.
	assertNoError(t, store.BumpPairThreshold(ctx, "p-bob", "p-ada", 0.70, 0.02, 0.85))
	assertNoError(t, store.BumpPairThreshold(ctx, "p-ada", "p-bob", 0.70, 0.02, 0.85))

	pairs, err := store.PairThresholds(ctx)
	assertNoError(t, err)
	got, ok := pairs[[2]string{"p-ada", "p-bob"}]
	if !ok {
		t.Fatalf("pair not stored in sorted order: %+v", pairs)
	}
	if got < 0.719 || got > 0.721 {
		t.Errorf("expected 0.70 + one step, got %v", got)
	}

	for i := 0; i < 20; i++ {
		assertNoError(t, store.BumpPairThreshold(ctx, "p-ada", "p-bob", 0.70, 0.02, 0.85))
	}
	pairs, err = store.PairThresholds(ctx)
	assertNoError(t, err)
	if got := pairs[[2]string{"p-ada", "p-bob"}]; got > 0.85 {
		t.Errorf("threshold exceeded the cap: %v", got)
	}
}

func TestDeletePerson_FacesReturnToPool(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	pid := "p-ada"
	assertNoError(t, store.AssignFace(ctx, "f-1", &pid, SourceManual, nil))
	assertNoError(t, store.BumpPairThreshold(ctx, "p-ada", "p-bob", 0.70, 0.02, 0.85))
	assertNoError(t, store.DeletePerson(ctx, "p-ada"))

	f, err := store.GetFace(ctx, "f-1")
	assertNoError(t, err)
	if f.PersonID != nil || f.AssignmentSource != nil {
		t.Errorf("face should be unassigned after person delete: %+v", f)
	}
	pairs, err := store.PairThresholds(ctx)
	assertNoError(t, err)
	if len(pairs) != 0 {
		t.Errorf("pair thresholds should be dropped with the person, got %+v", pairs)
	}
}

func TestPersonAppearances_OnlyDoneMedia(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFaceFixture(t, store)

	pid := "p-ada"
	assertNoError(t, store.AssignFace(ctx, "f-1", &pid, SourceManual, nil))

	got, err := store.PersonAppearances(ctx, []string{"p-ada"}, "")
	assertNoError(t, err)
	if len(got) != 0 {
		t.Fatalf("queued media should not appear, got %+v", got)
	}

	assertNoError(t, store.MarkMediaDone(ctx, "m-1"))
	got, err = store.PersonAppearances(ctx, []string{"p-ada"}, "")
	assertNoError(t, err)
	if len(got) != 1 || got[0].TimestampMs != 1000 || got[0].PersonName != "Ada" {
		t.Errorf("expected one named appearance at 1000ms, got %+v", got)
	}
}
