package handlers

import (
	"net/http"

	"ieltsprep/internal/reporting"
	"ieltsprep/internal/service"
)

// NotificationHandler serves the caller's inbox
type NotificationHandler struct {
	notifications *service.NotificationService
	reporter      *reporting.Reporter
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *service.NotificationService, reporter *reporting.Reporter) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, reporter: reporter}
}

// List returns notifications; ?unread=true limits to unread ones
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	list, err := h.notifications.List(r.Context(), GetUserFromContext(r.Context()).ID, unreadOnly, limit)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.UnreadCount(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), GetUserFromContext(r.Context()).ID, id); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.notifications.Delete(r.Context(), GetUserFromContext(r.Context()).ID, id); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
