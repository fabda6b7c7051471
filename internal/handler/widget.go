package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dheerajmandava/proovd-sub004/internal/middleware"
	"github.com/dheerajmandava/proovd-sub004/internal/service"
	"github.com/dheerajmandava/proovd-sub004/internal/widget"
)

// widgetCacheControl allows short-lived CDN caching of the loader. Five
// minutes bounds how stale a site's settings can get in served scripts.
const widgetCacheControl = "public, max-age=300"

// WidgetHandler serves the embeddable widget loader script.
type WidgetHandler struct {
	websites *service.WebsiteService
	baseURL  string
	logger   *slog.Logger
}

// NewWidgetHandler creates a new WidgetHandler.
func NewWidgetHandler(websites *service.WebsiteService, baseURL string, logger *slog.Logger) *WidgetHandler {
	return &WidgetHandler{
		websites: websites,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// Serve handles GET /w/{websiteID}.js.
//
// The script is rendered per site with the site's public key and display
// settings baked in. Unverified or disabled sites get a 404 rather than
// an error script, so embedding a dead snippet stays silent.
func (h *WidgetHandler) Serve(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")
	if err := middleware.ValidateULID(websiteID); err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}

	site, err := h.websites.GetByID(r.Context(), websiteID)
	if err != nil {
		if errors.Is(err, service.ErrWebsiteNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		h.logger.Error("widget lookup failed",
			slog.String("website_id", websiteID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	if !site.IsServable() {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}

	script := widget.Render(site, h.baseURL)

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", widgetCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(script))
}
