package handlers

import (
	"net/http"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/service"
)

// AttemptHandler serves test attempts and their answers
type AttemptHandler struct {
	attempts *service.AttemptService
	grading  *service.GradingService
	reporter *reporting.Reporter
}

// NewAttemptHandler creates a new attempt handler
func NewAttemptHandler(attempts *service.AttemptService, grading *service.GradingService, reporter *reporting.Reporter) *AttemptHandler {
	return &AttemptHandler{attempts: attempts, grading: grading, reporter: reporter}
}

type createAttemptRequest struct {
	TestID int64                `json:"testId"`
	UserID int64                `json:"userId"`
	Status models.AttemptStatus `json:"status"`
}

// Create starts an attempt
func (h *AttemptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in createAttemptRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if in.TestID <= 0 {
		respondError(w, r, h.reporter, apperr.Validation("Invalid input", apperr.FieldError{Field: "testId", Message: "testId is required"}))
		return
	}
	if in.Status != "" && in.Status != models.AttemptInProgress {
		respondError(w, r, h.reporter, apperr.Validation("Invalid input", apperr.FieldError{Field: "status", Message: "new attempts start in_progress"}))
		return
	}

	attempt, err := h.attempts.Create(r.Context(), GetUserFromContext(r.Context()), in.UserID, in.TestID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusCreated, attempt)
}

// Active returns the caller's active attempt, with null and 404 when there is none
func (h *AttemptHandler) Active(w http.ResponseWriter, r *http.Request) {
	testID, err := queryInt(r, "testId")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	attempt, err := h.attempts.GetActive(r.Context(), GetUserFromContext(r.Context()).ID, int64(testID))
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if attempt == nil {
		respondJSON(w, http.StatusNotFound, nil)
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

// List returns the caller's attempts
func (h *AttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.attempts.List(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, attempts)
}

// Get returns an attempt with its answers
func (h *AttemptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	attempt, err := h.attempts.Get(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

// UpdateStatus completes, abandons or times out an attempt
func (h *AttemptHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in service.StatusUpdate
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	attempt, err := h.attempts.UpdateStatus(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

// RecordAnswer stores an answer within an attempt
func (h *AttemptHandler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in service.AnswerInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	answer, err := h.attempts.RecordAnswer(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusCreated, answer)
}

// GetAnswer returns one answer to its owner or an admin
func (h *AttemptHandler) GetAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	answer, err := h.grading.GetAnswer(r.Context(), GetUserFromContext(r.Context()), id)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, answer)
}

// UpdateAnswer applies an admin's manual grade
func (h *AttemptHandler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in service.AnswerOverride
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	answer, err := h.grading.UpdateAnswer(r.Context(), GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, answer)
}
