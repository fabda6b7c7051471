// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Ingestion metrics
	IncEventsAccepted(n int)
	IncEventsDropped(n int)
	IncBatchRejected(reason string) // reason: "unauthorized" or "malformed"

	// Aggregation engine metrics
	ObserveSweepEvictions(n int)
	ObserveFlushDuration(duration time.Duration)
	IncFlushFailed()
	IncRecomputeRun(status string) // status: "success" or "failed"

	// Broadcast metrics
	IncSnapshotPublished(status string) // status: "delivered" or "dropped"
	SetSubscriberCount(count int64)

	// Event journal pipeline metrics
	IncJournalPublished(status string) // status: "success" or "dropped"
	IncJournalProcessed(status string) // status: "success", "failed", "skipped"
	ObserveJournalBatchSize(size int)
	SetJournalQueueDepth(depth int64)

	// Notification tracking metrics
	IncTrackRecorded(action string)
	IncTrackDuplicate(action string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
