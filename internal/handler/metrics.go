package handler

import (
	"fmt"
	"net/http"

	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "proovd_events_ingested_total{status=\"accepted\"} %d\n", snap.EventsAccepted)
	writeMetric(w, "proovd_events_ingested_total{status=\"rejected\"} %d\n", snap.EventsDropped)
	writeMetric(w, "proovd_batches_refused_total{reason=\"unauthorized\"} %d\n", snap.BatchesUnauthorized)
	writeMetric(w, "proovd_batches_refused_total{reason=\"malformed\"} %d\n", snap.BatchesMalformed)

	writeMetric(w, "proovd_sweep_evictions_total %d\n", snap.SweepEvictions)
	writeMetric(w, "proovd_flush_duration_seconds_count %d\n", snap.FlushCount)
	writeMetric(w, "proovd_flush_duration_seconds_sum %.6f\n", float64(snap.FlushTotalNs)/1e9)
	writeMetric(w, "proovd_flushes_failed_total %d\n", snap.FlushesFailed)
	writeMetric(w, "proovd_recomputes_total{status=\"success\"} %d\n", snap.RecomputesSucceeded)
	writeMetric(w, "proovd_recomputes_total{status=\"failed\"} %d\n", snap.RecomputesFailed)

	writeMetric(w, "proovd_snapshots_published_total{status=\"delivered\"} %d\n", snap.SnapshotsDelivered)
	writeMetric(w, "proovd_snapshots_published_total{status=\"dropped\"} %d\n", snap.SnapshotsDropped)
	writeMetric(w, "proovd_live_subscribers %d\n", snap.SubscriberCount)

	writeMetric(w, "proovd_journal_published_total{status=\"success\"} %d\n", snap.JournalPublished)
	writeMetric(w, "proovd_journal_published_total{status=\"dropped\"} %d\n", snap.JournalDropped)
	writeMetric(w, "proovd_journal_processed_total{status=\"success\"} %d\n", snap.JournalProcessed)
	writeMetric(w, "proovd_journal_processed_total{status=\"failed\"} %d\n", snap.JournalFailed)
	writeMetric(w, "proovd_journal_processed_total{status=\"dead_lettered\"} %d\n", snap.JournalSkipped)
	writeMetric(w, "proovd_journal_batch_size_count %d\n", snap.JournalBatchCount)
	writeMetric(w, "proovd_journal_batch_size_sum %d\n", snap.JournalBatchTotal)
	writeMetric(w, "proovd_journal_queue_depth %d\n", snap.JournalQueueDepth)

	writeMetric(w, "proovd_track_recorded_total{action=\"display\"} %d\n", snap.DisplaysRecorded)
	writeMetric(w, "proovd_track_recorded_total{action=\"click\"} %d\n", snap.ClicksRecorded)
	writeMetric(w, "proovd_track_duplicates_total{action=\"display\"} %d\n", snap.DisplayDuplicates)
	writeMetric(w, "proovd_track_duplicates_total{action=\"click\"} %d\n", snap.ClickDuplicates)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
