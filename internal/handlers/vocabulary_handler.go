package handlers

import (
	"net/http"

	"ieltsprep/internal/reporting"
	"ieltsprep/internal/service"
)

// VocabularyHandler serves the caller's word list
type VocabularyHandler struct {
	vocabulary *service.VocabularyService
	reporter   *reporting.Reporter
}

// NewVocabularyHandler creates a new vocabulary handler
func NewVocabularyHandler(vocabulary *service.VocabularyService, reporter *reporting.Reporter) *VocabularyHandler {
	return &VocabularyHandler{vocabulary: vocabulary, reporter: reporter}
}

type reviewRequest struct {
	KnowledgeRating int `json:"knowledgeRating"`
}

func (h *VocabularyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.VocabularyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	word, err := h.vocabulary.Create(r.Context(), GetUserFromContext(r.Context()).ID, in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusCreated, word)
}

func (h *VocabularyHandler) List(w http.ResponseWriter, r *http.Request) {
	words, err := h.vocabulary.List(r.Context(), GetUserFromContext(r.Context()).ID, r.URL.Query().Get("cefrLevel"))
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, words)
}

func (h *VocabularyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	word, err := h.vocabulary.Get(r.Context(), GetUserFromContext(r.Context()).ID, id)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, word)
}

func (h *VocabularyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in service.VocabularyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	word, err := h.vocabulary.Update(r.Context(), GetUserFromContext(r.Context()).ID, id, in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, word)
}

func (h *VocabularyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.vocabulary.Delete(r.Context(), GetUserFromContext(r.Context()).ID, id); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Review applies a 1-5 knowledge rating
func (h *VocabularyHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in reviewRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	word, err := h.vocabulary.Review(r.Context(), GetUserFromContext(r.Context()).ID, id, in.KnowledgeRating)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, word)
}

// Due returns words due for review
func (h *VocabularyHandler) Due(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	words, err := h.vocabulary.DueForReview(r.Context(), GetUserFromContext(r.Context()).ID, limit)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, words)
}

func (h *VocabularyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.vocabulary.Stats(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
