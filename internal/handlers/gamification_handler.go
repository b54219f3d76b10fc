package handlers

import (
	"net/http"

	"ieltsprep/internal/reporting"
	"ieltsprep/internal/service"
)

// GamificationHandler serves points, levels, badges and streaks
type GamificationHandler struct {
	gamification *service.GamificationService
	reporter     *reporting.Reporter
}

// NewGamificationHandler creates a new gamification handler
func NewGamificationHandler(gamification *service.GamificationService, reporter *reporting.Reporter) *GamificationHandler {
	return &GamificationHandler{gamification: gamification, reporter: reporter}
}

// Achievement returns the caller's points, level, counters and streak
func (h *GamificationHandler) Achievement(w http.ResponseWriter, r *http.Request) {
	summary, err := h.gamification.GetAchievement(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// LoginStreak records today's login
func (h *GamificationHandler) LoginStreak(w http.ResponseWriter, r *http.Request) {
	result, err := h.gamification.UpdateLoginStreak(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *GamificationHandler) Badges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.gamification.ListBadges(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, badges)
}

func (h *GamificationHandler) PointHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	history, err := h.gamification.PointHistory(r.Context(), GetUserFromContext(r.Context()).ID, limit)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *GamificationHandler) Levels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.gamification.Levels(r.Context())
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, levels)
}

func (h *GamificationHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	entries, err := h.gamification.Leaderboard(r.Context(), limit)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
