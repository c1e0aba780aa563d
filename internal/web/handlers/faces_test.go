package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

func seedFace(t *testing.T, deps Deps, faceID, videoID string) {
	t.Helper()
	face := catalog.Face{
		FaceID:      faceID,
		VideoID:     videoID,
		TimestampMs: 0,
		BboxX:       10, BboxY: 10, BboxW: 64, BboxH: 64,
		Confidence: 0.9,
		Embedding:  make([]byte, 16),
	}
	if err := deps.Store.ReplaceFaces(context.Background(), videoID, []catalog.Face{face}); err != nil {
		t.Fatalf("seeding face: %v", err)
	}
}

func seedPerson(t *testing.T, deps Deps, id, name string) {
	t.Helper()
	p := catalog.Person{PersonID: id, Name: name}
	if err := deps.Store.CreatePerson(context.Background(), &p); err != nil {
		t.Fatalf("seeding person: %v", err)
	}
}

func TestFaces_AssignRecordsCorrection(t *testing.T) {
	deps := newDeps(t)
	h := NewFacesHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	seedFace(t, deps, "f-1", "m-1")
	seedPerson(t, deps, "p-a", "Ada")
	seedPerson(t, deps, "p-b", "Grace")

	conf := 0.71
	personA := "p-a"
	if err := deps.Store.AssignFace(ctx, "f-1", &personA, catalog.SourceAuto, &conf); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	req := withChiParams(jsonRequest(t, http.MethodPost, "/faces/f-1/assign",
		map[string]string{"person_id": "p-b"}), map[string]string{"face_id": "f-1"})
	h.Assign(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	face, err := deps.Store.GetFace(ctx, "f-1")
	if err != nil {
		t.Fatal(err)
	}
	if face.PersonID == nil || *face.PersonID != "p-b" {
		t.Fatalf("face person = %v, want p-b", face.PersonID)
	}
	if face.AssignmentSource == nil || *face.AssignmentSource != catalog.SourceManual {
		t.Fatalf("source = %v, want manual", face.AssignmentSource)
	}

	negs, err := deps.Store.FaceNegatives(ctx, "p-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(negs) != 1 || negs[0].FaceID != "f-1" {
		t.Fatalf("negatives = %v, want one for f-1", negs)
	}

	pairs, err := deps.Store.ListPairThresholds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || pairs[0].Threshold != 0.70 || pairs[0].CorrectionCount != 1 {
		t.Fatalf("pairs = %+v, want one at 0.70 with count 1", pairs)
	}

	b, err := deps.Store.GetPerson(ctx, "p-b")
	if err != nil {
		t.Fatal(err)
	}
	if b.FaceCount != 1 {
		t.Fatalf("target face_count = %d, want 1", b.FaceCount)
	}
}

func TestFaces_AssignByNewName(t *testing.T) {
	deps := newDeps(t)
	h := NewFacesHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	seedFace(t, deps, "f-1", "m-1")

	rec := httptest.NewRecorder()
	req := withChiParams(jsonRequest(t, http.MethodPost, "/faces/f-1/assign",
		map[string]string{"person_name": "  Ada  Lovelace "}), map[string]string{"face_id": "f-1"})
	h.Assign(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	p, err := deps.Store.GetPersonByName(ctx, "Ada Lovelace")
	if err != nil {
		t.Fatalf("person was not created: %v", err)
	}
	if p.FaceCount != 1 {
		t.Fatalf("face_count = %d, want 1", p.FaceCount)
	}
}

func TestFaces_Merge(t *testing.T) {
	deps := newDeps(t)
	h := NewFacesHandler(deps)
	ctx := context.Background()

	seedMedia(t, deps, "m-1", catalog.MediaTypeVideo)
	seedFace(t, deps, "f-1", "m-1")
	seedPerson(t, deps, "p-a", "Ada")
	seedPerson(t, deps, "p-b", "Ada B")

	personB := "p-b"
	if err := deps.Store.AssignFace(ctx, "f-1", &personB, catalog.SourceManual, nil); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.Merge(rec, jsonRequest(t, http.MethodPost, "/faces/merge", map[string]string{
		"from_person_id": "p-b",
		"to_person_id":   "p-a",
	}))
	assertStatusCode(t, rec, http.StatusOK)
	if body := parseJSONResponse(t, rec); body["faces_moved"] != float64(1) {
		t.Fatalf("faces_moved = %v, want 1", body["faces_moved"])
	}

	if _, err := deps.Store.GetPerson(ctx, "p-b"); err == nil {
		t.Fatal("merged person should be gone")
	}
	a, err := deps.Store.GetPerson(ctx, "p-a")
	if err != nil {
		t.Fatal(err)
	}
	if a.FaceCount != 1 {
		t.Fatalf("survivor face_count = %d, want 1", a.FaceCount)
	}
}

func TestFaces_MergeSelfRejected(t *testing.T) {
	deps := newDeps(t)
	h := NewFacesHandler(deps)

	rec := httptest.NewRecorder()
	h.Merge(rec, jsonRequest(t, http.MethodPost, "/faces/merge", map[string]string{
		"from_person_id": "p-a",
		"to_person_id":   "p-a",
	}))
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestFaces_RecognitionMode(t *testing.T) {
	deps := newDeps(t)
	h := NewFacesHandler(deps)

	seedPerson(t, deps, "p-a", "Ada")

	rec := httptest.NewRecorder()
	req := withChiParams(jsonRequest(t, http.MethodPut, "/faces/persons/p-a/recognition-mode",
		map[string]string{"mode": catalog.ModeWeighted}), map[string]string{"id": "p-a"})
	h.RecognitionMode(rec, req)
	assertStatusCode(t, rec, http.StatusOK)
	if body := parseJSONResponse(t, rec); body["recognition_mode"] != catalog.ModeWeighted {
		t.Fatalf("mode = %v, want weighted", body["recognition_mode"])
	}

	rec = httptest.NewRecorder()
	req = withChiParams(jsonRequest(t, http.MethodPut, "/faces/persons/p-a/recognition-mode",
		map[string]string{"mode": "psychic"}), map[string]string{"id": "p-a"})
	h.RecognitionMode(rec, req)
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestFaces_ReviewQueueEmpty(t *testing.T) {
	deps := newDeps(t)
	h := NewFacesHandler(deps)

	rec := httptest.NewRecorder()
	h.ReviewQueue(rec, httptest.NewRequest(http.MethodGet, "/faces/review-queue", nil))
	assertStatusCode(t, rec, http.StatusOK)
	body := parseJSONResponse(t, rec)
	if faces, _ := body["faces"].([]any); len(faces) != 0 {
		t.Fatalf("faces = %v, want empty", body["faces"])
	}
}
