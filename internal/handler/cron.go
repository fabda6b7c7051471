package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/dheerajmandava/proovd-sub004/internal/aggregator"
	"github.com/dheerajmandava/proovd-sub004/internal/verification"
)

// EventTrimmer removes raw journal rows past the retention horizon.
type EventTrimmer interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CronHandler exposes the scheduled maintenance endpoints. They are
// triggered by an external scheduler and guarded by a shared token.
type CronHandler struct {
	engine     *aggregator.Engine
	recomputer aggregator.Recomputer
	trimmer    EventTrimmer
	retention  time.Duration
	verifier   *verification.Verifier
	token      string
	logger     *slog.Logger
}

// NewCronHandler creates a new CronHandler. A nil trimmer or
// non-positive retention disables journal trimming.
func NewCronHandler(engine *aggregator.Engine, recomputer aggregator.Recomputer, trimmer EventTrimmer, retention time.Duration, verifier *verification.Verifier, token string, logger *slog.Logger) *CronHandler {
	return &CronHandler{
		engine:     engine,
		recomputer: recomputer,
		trimmer:    trimmer,
		retention:  retention,
		verifier:   verifier,
		token:      token,
		logger:     logger,
	}
}

// authorize checks the token query parameter in constant time.
func (h *CronHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	token := r.URL.Query().Get("token")
	if h.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid cron token")
		return false
	}
	return true
}

// CalculateStats handles GET /cron/calculate-stats?token={token}.
// It rebuilds per-site stats from the raw event journal, folds the
// rebuilt rows back into the live engine, then trims journal rows past
// the retention horizon. Sites locked by a concurrent run elsewhere are
// skipped, not failed. A trim failure does not fail the run; the stats
// are already recomputed and the next run trims again.
func (h *CronHandler) CalculateStats(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	recomputed, err := h.engine.RecomputeAll(r.Context(), h.recomputer)
	if err != nil {
		h.logger.Error("stats recompute failed",
			slog.Int("recomputed", recomputed),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Recompute failed")
		return
	}

	var trimmed int64
	if h.trimmer != nil && h.retention > 0 {
		cutoff := time.Now().UTC().Add(-h.retention)
		trimmed, err = h.trimmer.DeleteOlderThan(r.Context(), cutoff)
		if err != nil {
			h.logger.Error("journal trim failed",
				slog.Time("cutoff", cutoff),
				slog.String("error", err.Error()),
			)
		}
	}

	h.logger.Info("stats recompute complete",
		slog.Int("recomputed", recomputed),
		slog.Int64("trimmed", trimmed),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"recomputed": recomputed,
		"trimmed":    trimmed,
	})
}

// VerifyDomains handles GET /cron/verify-domains?token={token}.
// Failed sites are requeued first so a fixed DNS or token file gets
// another chance in the same run.
func (h *CronHandler) VerifyDomains(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	retried, err := h.verifier.RetryFailed(r.Context())
	if err != nil {
		h.logger.Error("verification retry requeue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Verification sweep failed")
		return
	}

	verified, failed, err := h.verifier.Sweep(r.Context())
	if err != nil {
		h.logger.Error("verification sweep failed",
			slog.Int("verified", verified),
			slog.Int("failed", failed),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Verification sweep failed")
		return
	}

	h.logger.Info("verification sweep complete",
		slog.Int("retried", retried),
		slog.Int("verified", verified),
		slog.Int("failed", failed),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"retried":  retried,
		"verified": verified,
		"failed":   failed,
	})
}
