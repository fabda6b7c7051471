package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dheerajmandava/proovd-sub004/internal/handler/dto"
	"github.com/dheerajmandava/proovd-sub004/internal/middleware"
	"github.com/dheerajmandava/proovd-sub004/internal/service"
)

// NotificationsHandler serves the widget notification feed and records
// interactions.
type NotificationsHandler struct {
	svc    *service.NotificationService
	logger *slog.Logger
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/v1/notifications?page={path}.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	apiKey := requestAPIKey(r)

	page := r.URL.Query().Get("page")
	if err := middleware.ValidatePagePath(page); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAGE", "Invalid page parameter")
		return
	}

	list, settings, err := h.svc.ListForWidget(r.Context(), apiKey, page)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}
		h.logger.Error("notification list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToNotificationListResponse(list, settings))
}

// Track handles POST /api/v1/notifications/{id}/track.
// Each (notification, client, action) pair counts at most once; replayed
// reports succeed without recording.
func (h *NotificationsHandler) Track(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateULID(id); err != nil {
		writeError(w, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found")
		return
	}

	var req dto.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	apiKey := requestAPIKey(r)
	if apiKey == "" {
		apiKey = req.APIKey
	}

	recorded, err := h.svc.Track(r.Context(), service.TrackInput{
		APIKey:         apiKey,
		NotificationID: id,
		ClientID:       req.ResolveClientID(),
		Action:         req.Action,
	})
	if err != nil {
		h.handleTrackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrackResponse{Success: true, Recorded: recorded})
}

func (h *NotificationsHandler) handleTrackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")

	case errors.Is(err, service.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found")

	case errors.Is(err, service.ErrInvalidTrackAction):
		writeError(w, http.StatusBadRequest, "INVALID_ACTION", "Action must be display or click")

	case errors.Is(err, service.ErrInvalidClientID):
		writeError(w, http.StatusBadRequest, "INVALID_CLIENT_ID", "Invalid client identifier")

	default:
		h.logger.Error("notification track failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
