package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	EventsAccepted       uint64
	EventsDropped        uint64
	BatchesUnauthorized  uint64
	BatchesMalformed     uint64
	SweepEvictions       uint64
	FlushCount           uint64
	FlushTotalNs         int64
	FlushesFailed        uint64
	RecomputesSucceeded  uint64
	RecomputesFailed     uint64
	SnapshotsDelivered   uint64
	SnapshotsDropped     uint64
	SubscriberCount      int64
	JournalPublished     uint64
	JournalDropped       uint64
	JournalProcessed     uint64
	JournalFailed        uint64
	JournalSkipped       uint64
	JournalBatchCount    uint64
	JournalBatchTotal    uint64
	JournalQueueDepth    int64
	DisplaysRecorded     uint64
	ClicksRecorded       uint64
	DisplayDuplicates    uint64
	ClickDuplicates      uint64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	eventsAccepted      uint64
	eventsDropped       uint64
	batchesUnauthorized uint64
	batchesMalformed    uint64
	sweepEvictions      uint64
	flushCount          uint64
	flushTotalNs        int64
	flushesFailed       uint64
	recomputesSucceeded uint64
	recomputesFailed    uint64
	snapshotsDelivered  uint64
	snapshotsDropped    uint64
	subscriberCount     int64
	journalPublished    uint64
	journalDropped      uint64
	journalProcessed    uint64
	journalFailed       uint64
	journalSkipped      uint64
	journalBatchCount   uint64
	journalBatchTotal   uint64
	journalQueueDepth   int64
	displaysRecorded    uint64
	clicksRecorded      uint64
	displayDuplicates   uint64
	clickDuplicates     uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		EventsAccepted:      atomic.LoadUint64(&m.eventsAccepted),
		EventsDropped:       atomic.LoadUint64(&m.eventsDropped),
		BatchesUnauthorized: atomic.LoadUint64(&m.batchesUnauthorized),
		BatchesMalformed:    atomic.LoadUint64(&m.batchesMalformed),
		SweepEvictions:      atomic.LoadUint64(&m.sweepEvictions),
		FlushCount:          atomic.LoadUint64(&m.flushCount),
		FlushTotalNs:        atomic.LoadInt64(&m.flushTotalNs),
		FlushesFailed:       atomic.LoadUint64(&m.flushesFailed),
		RecomputesSucceeded: atomic.LoadUint64(&m.recomputesSucceeded),
		RecomputesFailed:    atomic.LoadUint64(&m.recomputesFailed),
		SnapshotsDelivered:  atomic.LoadUint64(&m.snapshotsDelivered),
		SnapshotsDropped:    atomic.LoadUint64(&m.snapshotsDropped),
		SubscriberCount:     atomic.LoadInt64(&m.subscriberCount),
		JournalPublished:    atomic.LoadUint64(&m.journalPublished),
		JournalDropped:      atomic.LoadUint64(&m.journalDropped),
		JournalProcessed:    atomic.LoadUint64(&m.journalProcessed),
		JournalFailed:       atomic.LoadUint64(&m.journalFailed),
		JournalSkipped:      atomic.LoadUint64(&m.journalSkipped),
		JournalBatchCount:   atomic.LoadUint64(&m.journalBatchCount),
		JournalBatchTotal:   atomic.LoadUint64(&m.journalBatchTotal),
		JournalQueueDepth:   atomic.LoadInt64(&m.journalQueueDepth),
		DisplaysRecorded:    atomic.LoadUint64(&m.displaysRecorded),
		ClicksRecorded:      atomic.LoadUint64(&m.clicksRecorded),
		DisplayDuplicates:   atomic.LoadUint64(&m.displayDuplicates),
		ClickDuplicates:     atomic.LoadUint64(&m.clickDuplicates),
	}
}

// IncEventsAccepted adds to the accepted event counter.
func (m *InMemoryRecorder) IncEventsAccepted(n int) {
	atomic.AddUint64(&m.eventsAccepted, uint64(n))
}

// IncEventsDropped adds to the dropped event counter.
func (m *InMemoryRecorder) IncEventsDropped(n int) {
	atomic.AddUint64(&m.eventsDropped, uint64(n))
}

// IncBatchRejected increments the rejected batch counter for a reason.
func (m *InMemoryRecorder) IncBatchRejected(reason string) {
	switch reason {
	case "unauthorized":
		atomic.AddUint64(&m.batchesUnauthorized, 1)
	default:
		atomic.AddUint64(&m.batchesMalformed, 1)
	}
}

// ObserveSweepEvictions adds to the sweep eviction counter.
func (m *InMemoryRecorder) ObserveSweepEvictions(n int) {
	atomic.AddUint64(&m.sweepEvictions, uint64(n))
}

// ObserveFlushDuration records one flush cycle.
func (m *InMemoryRecorder) ObserveFlushDuration(duration time.Duration) {
	atomic.AddUint64(&m.flushCount, 1)
	atomic.AddInt64(&m.flushTotalNs, duration.Nanoseconds())
}

// IncFlushFailed increments the failed flush counter.
func (m *InMemoryRecorder) IncFlushFailed() {
	atomic.AddUint64(&m.flushesFailed, 1)
}

// IncRecomputeRun increments the recompute counter by status.
func (m *InMemoryRecorder) IncRecomputeRun(status string) {
	if status == "success" {
		atomic.AddUint64(&m.recomputesSucceeded, 1)
		return
	}
	atomic.AddUint64(&m.recomputesFailed, 1)
}

// IncSnapshotPublished increments the snapshot publish counter by status.
func (m *InMemoryRecorder) IncSnapshotPublished(status string) {
	if status == "delivered" {
		atomic.AddUint64(&m.snapshotsDelivered, 1)
		return
	}
	atomic.AddUint64(&m.snapshotsDropped, 1)
}

// SetSubscriberCount records the current live subscriber count.
func (m *InMemoryRecorder) SetSubscriberCount(count int64) {
	atomic.StoreInt64(&m.subscriberCount, count)
}

// IncJournalPublished increments the journal publish counter by status.
func (m *InMemoryRecorder) IncJournalPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.journalPublished, 1)
		return
	}
	atomic.AddUint64(&m.journalDropped, 1)
}

// IncJournalProcessed increments the journal consume counter by status.
func (m *InMemoryRecorder) IncJournalProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.journalProcessed, 1)
	case "skipped":
		atomic.AddUint64(&m.journalSkipped, 1)
	default:
		atomic.AddUint64(&m.journalFailed, 1)
	}
}

// ObserveJournalBatchSize records one consumed batch.
func (m *InMemoryRecorder) ObserveJournalBatchSize(size int) {
	atomic.AddUint64(&m.journalBatchCount, 1)
	atomic.AddUint64(&m.journalBatchTotal, uint64(size))
}

// SetJournalQueueDepth records the current journal stream depth.
func (m *InMemoryRecorder) SetJournalQueueDepth(depth int64) {
	atomic.StoreInt64(&m.journalQueueDepth, depth)
}

// IncTrackRecorded increments the first-time track counter for an action.
func (m *InMemoryRecorder) IncTrackRecorded(action string) {
	if action == "click" {
		atomic.AddUint64(&m.clicksRecorded, 1)
		return
	}
	atomic.AddUint64(&m.displaysRecorded, 1)
}

// IncTrackDuplicate increments the duplicate track counter for an action.
func (m *InMemoryRecorder) IncTrackDuplicate(action string) {
	if action == "click" {
		atomic.AddUint64(&m.clickDuplicates, 1)
		return
	}
	atomic.AddUint64(&m.displayDuplicates, 1)
}
