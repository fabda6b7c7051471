package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncEventsAccepted is a no-op.
func (n *NoopRecorder) IncEventsAccepted(int) {}

// IncEventsDropped is a no-op.
func (n *NoopRecorder) IncEventsDropped(int) {}

// IncBatchRejected is a no-op.
func (n *NoopRecorder) IncBatchRejected(string) {}

// ObserveSweepEvictions is a no-op.
func (n *NoopRecorder) ObserveSweepEvictions(int) {}

// ObserveFlushDuration is a no-op.
func (n *NoopRecorder) ObserveFlushDuration(time.Duration) {}

// IncFlushFailed is a no-op.
func (n *NoopRecorder) IncFlushFailed() {}

// IncRecomputeRun is a no-op.
func (n *NoopRecorder) IncRecomputeRun(string) {}

// IncSnapshotPublished is a no-op.
func (n *NoopRecorder) IncSnapshotPublished(string) {}

// SetSubscriberCount is a no-op.
func (n *NoopRecorder) SetSubscriberCount(int64) {}

// IncJournalPublished is a no-op.
func (n *NoopRecorder) IncJournalPublished(string) {}

// IncJournalProcessed is a no-op.
func (n *NoopRecorder) IncJournalProcessed(string) {}

// ObserveJournalBatchSize is a no-op.
func (n *NoopRecorder) ObserveJournalBatchSize(int) {}

// SetJournalQueueDepth is a no-op.
func (n *NoopRecorder) SetJournalQueueDepth(int64) {}

// IncTrackRecorded is a no-op.
func (n *NoopRecorder) IncTrackRecorded(string) {}

// IncTrackDuplicate is a no-op.
func (n *NoopRecorder) IncTrackDuplicate(string) {}
