package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

// PersonsHandler serves person CRUD, favorites and timelines.
type PersonsHandler struct {
	deps Deps
}

func NewPersonsHandler(deps Deps) *PersonsHandler {
	return &PersonsHandler{deps: deps}
}

func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	persons, err := h.deps.Store.ListPersons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if persons == nil {
		persons = []catalog.Person{}
	}
	favorites, err := h.deps.Store.FavoritePersonIDs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"persons":   persons,
		"favorites": favorites,
	})
}

func (h *PersonsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	name := cleanName(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := h.deps.Store.GetPersonByName(r.Context(), name); err == nil {
		respondError(w, http.StatusConflict, "person already exists")
		return
	} else if !errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	p := catalog.Person{PersonID: uuid.NewString(), Name: name}
	if err := h.deps.Store.CreatePerson(r.Context(), &p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Store.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PersonsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Store.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Name            *string `json:"name"`
		RecognitionMode *string `json:"recognition_mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != nil {
		name := cleanName(*req.Name)
		if name == "" {
			respondError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		p.Name = name
	}
	if req.RecognitionMode != nil {
		switch *req.RecognitionMode {
		case catalog.ModeAverage, catalog.ModeReferenceOnly, catalog.ModeWeighted:
			p.RecognitionMode = *req.RecognitionMode
		default:
			respondError(w, http.StatusBadRequest, "unknown recognition mode")
			return
		}
	}
	if err := h.deps.Store.UpdatePerson(r.Context(), p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PersonsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Store.DeletePerson(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *PersonsHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Store.SetPersonFavorite(r.Context(), id, true); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"person_id": id, "favorite": true})
}

func (h *PersonsHandler) ClearFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.Store.SetPersonFavorite(r.Context(), id, false); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"person_id": id, "favorite": false})
}

// Timeline lists everywhere a person appears in DONE media.
func (h *PersonsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appearances, err := h.deps.Store.PersonAppearances(r.Context(),
		[]string{id}, r.URL.Query().Get("library_id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if appearances == nil {
		appearances = []catalog.PersonAppearance{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"person_id":   id,
		"appearances": appearances,
	})
}
