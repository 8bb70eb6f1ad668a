package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stackgo/backend/internal/middleware"
	"github.com/stackgo/backend/internal/models"
	"github.com/stackgo/backend/internal/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the caller's notifications, newest first
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notifications, err := h.notifications.List(r.Context(), identity.UserID, unreadOnly, limit)
	if err != nil {
		services.SendErrorResponse(w, "Failed to load notifications", http.StatusInternalServerError, nil)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	notificationID, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil || notificationID <= 0 {
		services.SendErrorResponse(w, "Invalid notification id", http.StatusBadRequest, nil)
		return
	}

	err = h.notifications.MarkRead(r.Context(), notificationID, identity.UserID)
	if errors.Is(err, services.ErrNotFound) {
		services.SendErrorResponse(w, "Notification not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		services.SendErrorResponse(w, "Failed to update notification", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// MarkAllRead marks every unread notification as read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	count, err := h.notifications.MarkAllRead(r.Context(), identity.UserID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to update notifications", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"count": count})
}

// UnreadCount returns the caller's unread notification count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), identity.UserID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to load unread count", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"unread_count": count})
}
