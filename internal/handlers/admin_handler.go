package handlers

import (
	"net/http"

	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/service"
)

// AdminHandler serves user management and the grading backlog
type AdminHandler struct {
	authService *service.AuthService
	grading     *service.GradingService
	reporter    *reporting.Reporter
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService *service.AuthService, grading *service.GradingService, reporter *reporting.Reporter) *AdminHandler {
	return &AdminHandler{authService: authService, grading: grading, reporter: reporter}
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

// ListUsers pages through accounts
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	users, err := h.authService.ListUsers(r.Context(), GetUserFromContext(r.Context()), limit, offset)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// UpdateRole promotes or demotes a user
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	var in roleRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	user, err := h.authService.UpdateRole(r.Context(), GetUserFromContext(r.Context()), id, in.Role)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// PendingAnswers lists answers waiting for AI or manual grading
func (h *AdminHandler) PendingAnswers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	answers, err := h.grading.ListPending(r.Context(), GetUserFromContext(r.Context()), limit)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, answers)
}
