package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/facerec"
)

// FacesHandler serves face assignment, learning and review endpoints.
type FacesHandler struct {
	deps Deps
}

func NewFacesHandler(deps Deps) *FacesHandler {
	return &FacesHandler{deps: deps}
}

// Assign reassigns a face to a person, unassigns it, or creates a new
// person by name first. Every correction feeds the learner.
func (h *FacesHandler) Assign(w http.ResponseWriter, r *http.Request) {
	faceID := chi.URLParam(r, "face_id")
	var req struct {
		PersonID   *string `json:"person_id"`
		PersonName *string `json:"person_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	face, err := h.deps.Store.GetFace(r.Context(), faceID)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	target := req.PersonID
	if target == nil && req.PersonName != nil {
		id, err := h.resolvePersonByName(r, *req.PersonName)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		target = &id
	}
	if target != nil {
		if _, err := h.deps.Store.GetPerson(r.Context(), *target); errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "person not found")
			return
		} else if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if err := h.deps.Learner.RecordReassignment(r.Context(), faceID, face.PersonID, target); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{"face_id": faceID}
	if target != nil {
		resp["person_id"] = *target
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *FacesHandler) resolvePersonByName(r *http.Request, name string) (string, error) {
	name = cleanName(name)
	if p, err := h.deps.Store.GetPersonByName(r.Context(), name); err == nil {
		return p.PersonID, nil
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return "", err
	}
	p := catalog.Person{PersonID: uuid.NewString(), Name: name}
	if err := h.deps.Store.CreatePerson(r.Context(), &p); err != nil {
		return "", err
	}
	return p.PersonID, nil
}

// Merge folds one person into another, moving faces, references and
// negatives, then re-picks the survivor's thumbnail.
func (h *FacesHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromPersonID string `json:"from_person_id"`
		ToPersonID   string `json:"to_person_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FromPersonID == "" || req.ToPersonID == "" {
		respondError(w, http.StatusBadRequest, "from_person_id and to_person_id are required")
		return
	}
	if req.FromPersonID == req.ToPersonID {
		respondError(w, http.StatusBadRequest, "cannot merge a person into itself")
		return
	}

	moved, err := h.deps.Store.MergePersons(r.Context(), req.FromPersonID, req.ToPersonID)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.deps.Learner.PickThumbnail(r.Context(), req.ToPersonID); err != nil {
		h.deps.Log.Warn("thumbnail refresh after merge failed",
			"person_id", req.ToPersonID, "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"person_id":   req.ToPersonID,
		"faces_moved": moved,
	})
}

// Cluster groups unassigned faces by embedding similarity.
func (h *FacesHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Learner.ClusterUnassigned(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"clusters": n})
}

// ReviewQueue lists low-confidence auto assignments for human review.
func (h *FacesHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	cutoff := constants.ReviewConfidenceCutoff
	if raw := r.URL.Query().Get("cutoff"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cutoff = v
		}
	}
	limit := queryInt(r, "limit", 50)

	faces, err := h.deps.Store.ReviewQueue(r.Context(), cutoff, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if faces == nil {
		faces = []catalog.Face{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"faces": faces})
}

// Unassigned lists faces with no person yet.
func (h *FacesHandler) Unassigned(w http.ResponseWriter, r *http.Request) {
	faces, err := h.deps.Store.UnassignedFaces(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if faces == nil {
		faces = []catalog.Face{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"faces": faces})
}

// ForVideo lists a video's face rows.
func (h *FacesHandler) ForVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	faces, err := h.deps.Store.FacesForVideo(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if faces == nil {
		faces = []catalog.Face{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"video_id": id, "faces": faces})
}

// RecognitionMode switches how a person's profile is computed.
func (h *FacesHandler) RecognitionMode(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	switch req.Mode {
	case catalog.ModeAverage, catalog.ModeReferenceOnly, catalog.ModeWeighted:
	default:
		respondError(w, http.StatusBadRequest, "unknown recognition mode")
		return
	}

	p, err := h.deps.Store.GetPerson(r.Context(), personID)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p.RecognitionMode = req.Mode
	if err := h.deps.Store.UpdatePerson(r.Context(), p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// MarkReference promotes a face to a high-weight exemplar.
func (h *FacesHandler) MarkReference(w http.ResponseWriter, r *http.Request) {
	faceID := chi.URLParam(r, "face_id")
	var req struct {
		PersonID string   `json:"person_id"`
		Weight   *float64 `json:"weight"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PersonID == "" {
		respondError(w, http.StatusBadRequest, "person_id is required")
		return
	}
	weight := constants.WeightReference
	if req.Weight != nil && *req.Weight > 0 {
		weight = *req.Weight
	}
	if err := h.deps.Store.AddFaceReference(r.Context(), faceID, req.PersonID, weight); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"face_id":   faceID,
		"person_id": req.PersonID,
		"weight":    weight,
	})
}

// References lists a person's reference faces.
func (h *FacesHandler) References(w http.ResponseWriter, r *http.Request) {
	refs, err := h.deps.Store.FaceReferences(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if refs == nil {
		refs = []catalog.FaceReference{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"references": refs})
}

// RemoveReference demotes a reference face back to a normal assignment.
func (h *FacesHandler) RemoveReference(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Store.RemoveFaceReference(r.Context(),
		chi.URLParam(r, "face_id"), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "reference not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ConfusingPairs lists the learned pair thresholds.
func (h *FacesHandler) ConfusingPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.deps.Store.ListPairThresholds(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pairs == nil {
		pairs = []catalog.PairThreshold{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}

// Suggestions proposes assignments for unassigned faces.
func (h *FacesHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.deps.Learner.Suggest(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if suggestions == nil {
		suggestions = []facerec.Suggestion{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
