package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dheerajmandava/proovd-sub004/internal/handler/dto"
	"github.com/dheerajmandava/proovd-sub004/internal/service"
)

// EventsHandler handles widget event batch ingestion.
type EventsHandler struct {
	svc    *service.IngestService
	logger *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(svc *service.IngestService, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		svc:    svc,
		logger: logger,
	}
}

// Ingest handles POST /api/v1/events.
//
// Batches are partially accepted: valid events count even when the batch
// also carries junk, and the response names each rejected index. A
// missing or unservable site key refuses the whole batch with a uniform
// 401 that does not reveal whether the key exists.
func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.EventBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	apiKey := requestAPIKey(r)
	if apiKey == "" {
		apiKey = req.APIKey
	}

	geo := service.ClientGeo{
		CountryCode: service.ExtractCountryCode(r.Header.Get("CF-IPCountry")),
		CityName:    r.Header.Get("CF-IPCity"),
	}

	result, err := h.svc.Ingest(r.Context(), apiKey, req.ToIncomingEvents(), geo)
	if err != nil {
		h.handleIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, dto.EventBatchResponse{
		Accepted: result.Accepted,
		Rejected: result.Rejected,
		Errors:   result.Errors,
	})
}

func (h *EventsHandler) handleIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")

	case errors.Is(err, service.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "EMPTY_BATCH", "Batch contains no events")

	case errors.Is(err, service.ErrBatchTooLarge):
		writeError(w, http.StatusBadRequest, "BATCH_TOO_LARGE", "Batch exceeds the maximum event count")

	default:
		h.logger.Error("event ingest failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
