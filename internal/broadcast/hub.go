// Package broadcast fans live stats snapshots out to dashboard subscribers.
//
// Delivery is lossy on purpose. Snapshots are absolute state, so a slow
// subscriber only ever needs the newest one: when a subscriber's queue is
// full the oldest queued snapshot is dropped and the fresh one queued.
// Publishers never block on subscribers.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// DefaultQueueSize is the per-subscriber snapshot queue capacity.
const DefaultQueueSize = 8

// Subscriber is one live dashboard connection's view of a website's
// snapshot stream.
type Subscriber struct {
	websiteID string
	ch        chan *model.StatsSnapshot

	mu     sync.Mutex
	closed bool
}

// WebsiteID returns the website this subscriber watches.
func (s *Subscriber) WebsiteID() string {
	return s.websiteID
}

// Receive returns the snapshot channel. The channel is closed when the
// subscriber is removed from the hub.
func (s *Subscriber) Receive() <-chan *model.StatsSnapshot {
	return s.ch
}

// push queues a snapshot, evicting the oldest queued one when full.
// Returns true if an eviction happened.
func (s *Subscriber) push(snapshot *model.StatsSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	dropped := false
	for {
		select {
		case s.ch <- snapshot:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			dropped = true
		default:
		}
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub routes snapshots from the aggregation engine to subscribers grouped
// by website.
type Hub struct {
	logger    *slog.Logger
	metrics   metrics.Recorder
	queueSize int

	mu    sync.RWMutex
	sites map[string]map[*Subscriber]struct{}
	count int64
}

// NewHub creates a broadcast hub.
func NewHub(logger *slog.Logger, recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Hub{
		logger:    logger.With("component", "broadcast"),
		metrics:   recorder,
		queueSize: DefaultQueueSize,
		sites:     make(map[string]map[*Subscriber]struct{}),
	}
}

// SetQueueSize overrides the default per-subscriber queue capacity.
func (h *Hub) SetQueueSize(size int) {
	if size > 0 {
		h.queueSize = size
	}
}

// Subscribe registers a new subscriber for a website's snapshot stream.
func (h *Hub) Subscribe(websiteID string) *Subscriber {
	sub := &Subscriber{
		websiteID: websiteID,
		ch:        make(chan *model.StatsSnapshot, h.queueSize),
	}

	h.mu.Lock()
	subs := h.sites[websiteID]
	if subs == nil {
		subs = make(map[*Subscriber]struct{})
		h.sites[websiteID] = subs
	}
	subs[sub] = struct{}{}
	h.count++
	count := h.count
	h.mu.Unlock()

	h.metrics.SetSubscriberCount(count)
	h.logger.Debug("subscriber joined", "website_id", websiteID, "subscribers", count)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	subs := h.sites[sub.websiteID]
	if _, ok := subs[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.sites, sub.websiteID)
	}
	h.count--
	count := h.count
	h.mu.Unlock()

	sub.close()
	h.metrics.SetSubscriberCount(count)
	h.logger.Debug("subscriber left", "website_id", sub.websiteID, "subscribers", count)
}

// Publish delivers a snapshot to every subscriber of its website. Never
// blocks; slow subscribers lose their oldest queued snapshot.
func (h *Hub) Publish(snapshot *model.StatsSnapshot) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.sites[snapshot.WebsiteID]))
	for sub := range h.sites[snapshot.WebsiteID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.push(snapshot) {
			h.metrics.IncSnapshotPublished("dropped")
		} else {
			h.metrics.IncSnapshotPublished("delivered")
		}
	}
}

// SubscriberCount returns the number of subscribers for one website.
func (h *Hub) SubscriberCount(websiteID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sites[websiteID])
}

// Close removes every subscriber, closing their channels.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Subscriber
	for _, subs := range h.sites {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	h.sites = make(map[string]map[*Subscriber]struct{})
	h.count = 0
	h.mu.Unlock()

	for _, sub := range all {
		sub.close()
	}
	h.metrics.SetSubscriberCount(0)
}
