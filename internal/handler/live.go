package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dheerajmandava/proovd-sub004/internal/aggregator"
	"github.com/dheerajmandava/proovd-sub004/internal/broadcast"
	"github.com/dheerajmandava/proovd-sub004/internal/service"
)

const (
	// liveWriteTimeout bounds each snapshot write so one dead socket
	// cannot wedge its handler goroutine.
	liveWriteTimeout = 5 * time.Second

	// livePingInterval keeps intermediaries from reaping quiet streams.
	livePingInterval = 30 * time.Second
)

// LiveHandler streams live stats snapshots over WebSocket.
type LiveHandler struct {
	websites *service.WebsiteService
	engine   *aggregator.Engine
	hub      *broadcast.Hub
	logger   *slog.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(websites *service.WebsiteService, engine *aggregator.Engine, hub *broadcast.Hub, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		websites: websites,
		engine:   engine,
		hub:      hub,
		logger:   logger,
	}
}

// Live handles GET /api/v1/live?key={apiKey}.
//
// The site key travels in the query string because browsers cannot set
// headers on WebSocket upgrades. After the upgrade the client receives
// the current snapshot immediately, then every change for its site.
// Delivery is lossy under backpressure; each message is a full snapshot
// so the latest one is always sufficient.
func (h *LiveHandler) Live(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("key")
	if apiKey == "" {
		apiKey = r.URL.Query().Get("apiKey")
	}
	if apiKey == "" {
		apiKey = r.Header.Get(APIKeyHeader)
	}

	site, err := h.websites.Resolve(r.Context(), apiKey)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}
		h.logger.Error("live resolve failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Dashboards and customer pages connect from arbitrary origins;
		// the key in the URL is the access control, not the origin.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed",
			slog.String("website_id", site.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer c.Close(websocket.StatusInternalError, "stream closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.hub.Subscribe(site.ID)
	defer h.hub.Unsubscribe(sub)

	// Clients never send data; the read loop only notices closes.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}()

	// Initial snapshot so the dashboard renders without waiting for the
	// next event.
	if snap, err := h.engine.Snapshot(ctx, site.ID); err == nil {
		if err := h.writeSnapshot(ctx, c, snap); err != nil {
			return
		}
	}

	pings := time.NewTicker(livePingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return

		case snap, ok := <-sub.Receive():
			if !ok {
				c.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := h.writeSnapshot(ctx, c, snap); err != nil {
				return
			}

		case <-pings.C:
			pctx, pcancel := context.WithTimeout(ctx, liveWriteTimeout)
			err := c.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) writeSnapshot(ctx context.Context, c *websocket.Conn, snap any) error {
	wctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, c, snap)
}
