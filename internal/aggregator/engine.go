// Package aggregator maintains per-website activity aggregates in memory.
//
// The engine is the single writer for each site's aggregate: all updates to
// one site's counters go through that site's mutex, so concurrent ingest
// batches never interleave half-applied. Live visitor counts derive from a
// per-client last-seen map pruned by a periodic sweep; averages are
// incremental means that survive restarts via persisted sample counts.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
)

const (
	// DefaultLivenessWindow is how long after its last event a client
	// still counts as an active visitor.
	DefaultLivenessWindow = 60 * time.Second

	// DefaultSweepInterval is how often stale clients are evicted.
	DefaultSweepInterval = 15 * time.Second

	// DefaultFlushInterval is how often dirty aggregates are persisted.
	DefaultFlushInterval = 10 * time.Second
)

// StatsStore persists and loads per-website aggregate rows.
type StatsStore interface {
	Upsert(ctx context.Context, stats *model.WebsiteStats) error
	GetByWebsiteID(ctx context.Context, websiteID string) (*model.WebsiteStats, error)
}

// Recomputer rebuilds aggregates from the raw event journal.
type Recomputer interface {
	ListWebsiteIDs(ctx context.Context) ([]string, error)
	Recompute(ctx context.Context, websiteID string, livenessWindow time.Duration, now time.Time) (*model.WebsiteStats, error)
}

// Publisher receives fresh snapshots for fan-out to live subscribers.
type Publisher interface {
	Publish(snapshot *model.StatsSnapshot)
}

// siteState holds one website's aggregate. Guarded by its own mutex so
// updates for different sites never contend.
type siteState struct {
	mu sync.Mutex

	clients     map[string]time.Time // client id -> last seen
	geoSeen     map[string]struct{}  // client ids already counted in geo maps
	totalClicks int64
	scroll      runningMean
	timeOnPage  runningMean
	byCountry   map[string]int64
	byCity      map[string]int64

	dirty bool
}

// Engine folds activity events into per-website aggregates and drives the
// sweep and flush loops.
type Engine struct {
	store     StatsStore
	publisher Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder

	livenessWindow time.Duration
	sweepInterval  time.Duration
	flushInterval  time.Duration
	now            func() time.Time

	mu    sync.RWMutex
	sites map[string]*siteState

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runMu   sync.Mutex
}

// New creates an aggregation engine.
func New(store StatsStore, publisher Publisher, logger *slog.Logger, recorder metrics.Recorder) *Engine {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Engine{
		store:          store,
		publisher:      publisher,
		logger:         logger.With("component", "aggregator"),
		metrics:        recorder,
		livenessWindow: DefaultLivenessWindow,
		sweepInterval:  DefaultSweepInterval,
		flushInterval:  DefaultFlushInterval,
		now:            time.Now,
		sites:          make(map[string]*siteState),
	}
}

// SetLivenessWindow overrides the default liveness window.
func (e *Engine) SetLivenessWindow(window time.Duration) {
	if window > 0 {
		e.livenessWindow = window
	}
}

// SetSweepInterval overrides the default sweep interval.
func (e *Engine) SetSweepInterval(interval time.Duration) {
	if interval > 0 {
		e.sweepInterval = interval
	}
}

// SetFlushInterval overrides the default flush interval.
func (e *Engine) SetFlushInterval(interval time.Duration) {
	if interval > 0 {
		e.flushInterval = interval
	}
}

// SetClock overrides the time source for tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Apply folds a batch of events for one website into its aggregate and
// publishes the resulting snapshot. Events are assumed validated upstream.
func (e *Engine) Apply(ctx context.Context, websiteID string, events []*model.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	site, err := e.getOrCreateSite(ctx, websiteID)
	if err != nil {
		return err
	}

	now := e.now()

	site.mu.Lock()
	for _, event := range events {
		// Any event proves the client is present.
		site.clients[event.ClientID] = now

		switch event.Type {
		case model.EventClick:
			site.totalClicks++
		case model.EventScroll:
			site.scroll.add(event.Value)
		case model.EventHeartbeat:
			if event.Value > 0 {
				site.timeOnPage.add(event.Value)
			}
		case model.EventPageview:
			// Presence only.
		}

		// Geo counts each client once, on its first located event.
		if event.CountryCode != "" {
			if _, seen := site.geoSeen[event.ClientID]; !seen {
				site.geoSeen[event.ClientID] = struct{}{}
				site.byCountry[event.CountryCode]++
				if event.CityName != "" {
					site.byCity[event.CityName]++
				}
			}
		}
	}
	site.dirty = true
	snapshot := e.snapshotLocked(websiteID, site, now)
	site.mu.Unlock()

	e.publish(snapshot)
	return nil
}

// Snapshot returns the current aggregate state for a website. A site with
// no in-memory state yet is hydrated from storage.
func (e *Engine) Snapshot(ctx context.Context, websiteID string) (*model.StatsSnapshot, error) {
	site, err := e.getOrCreateSite(ctx, websiteID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	site.mu.Lock()
	snapshot := e.snapshotLocked(websiteID, site, now)
	site.mu.Unlock()

	return snapshot, nil
}

// snapshotLocked builds a snapshot. Caller holds site.mu.
func (e *Engine) snapshotLocked(websiteID string, site *siteState, now time.Time) *model.StatsSnapshot {
	cutoff := now.Add(-e.livenessWindow)
	var active int64
	for _, lastSeen := range site.clients {
		if !lastSeen.Before(cutoff) {
			active++
		}
	}

	byCountry := make(map[string]int64, len(site.byCountry))
	for k, v := range site.byCountry {
		byCountry[k] = v
	}
	byCity := make(map[string]int64, len(site.byCity))
	for k, v := range site.byCity {
		byCity[k] = v
	}

	return &model.StatsSnapshot{
		WebsiteID:           websiteID,
		ActiveUsers:         active,
		TotalClicks:         site.totalClicks,
		AvgScrollPercentage: site.scroll.value(),
		AvgTimeOnPageMs:     site.timeOnPage.value(),
		UsersByCountry:      byCountry,
		UsersByCity:         byCity,
		GeneratedAt:         now,
	}
}

// Run starts the sweep and flush loops. Blocks until context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.runMu.Lock()
	if e.started {
		e.runMu.Unlock()
		return errors.New("engine already started")
	}
	e.started = true
	e.done = make(chan struct{})
	ctx, e.cancel = context.WithCancel(ctx)
	e.runMu.Unlock()

	defer close(e.done)

	e.logger.Info("aggregation engine started",
		"liveness_window", e.livenessWindow,
		"sweep_interval", e.sweepInterval,
		"flush_interval", e.flushInterval,
	)

	sweepTicker := time.NewTicker(e.sweepInterval)
	defer sweepTicker.Stop()
	flushTicker := time.NewTicker(e.flushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("aggregation engine stopping")
			return ctx.Err()
		case <-sweepTicker.C:
			e.Sweep()
		case <-flushTicker.C:
			e.Flush(ctx)
		}
	}
}

// Shutdown stops the loops and flushes remaining dirty aggregates.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.runMu.Lock()
	if !e.started {
		e.runMu.Unlock()
		return nil
	}
	cancel := e.cancel
	done := e.done
	e.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.Flush(ctx)
	e.logger.Info("aggregation engine shutdown complete")
	return nil
}

// Sweep evicts clients whose last event is past the liveness window and
// publishes snapshots for sites whose active count changed.
func (e *Engine) Sweep() {
	now := e.now()
	cutoff := now.Add(-e.livenessWindow)

	e.mu.RLock()
	ids := make([]string, 0, len(e.sites))
	for id := range e.sites {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	evicted := 0
	for _, id := range ids {
		e.mu.RLock()
		site := e.sites[id]
		e.mu.RUnlock()
		if site == nil {
			continue
		}

		site.mu.Lock()
		pruned := 0
		for clientID, lastSeen := range site.clients {
			if lastSeen.Before(cutoff) {
				delete(site.clients, clientID)
				// Forget the geo mark too: the same visitor coming back
				// later is a new session and counts again.
				delete(site.geoSeen, clientID)
				pruned++
			}
		}
		var snapshot *model.StatsSnapshot
		if pruned > 0 {
			site.dirty = true
			snapshot = e.snapshotLocked(id, site, now)
		}
		site.mu.Unlock()

		if snapshot != nil {
			e.publish(snapshot)
		}
		evicted += pruned
	}

	if evicted > 0 {
		e.metrics.ObserveSweepEvictions(evicted)
	}
}

// Flush persists every dirty aggregate. Failed sites stay dirty and are
// retried on the next tick.
func (e *Engine) Flush(ctx context.Context) {
	start := e.now()

	e.mu.RLock()
	ids := make([]string, 0, len(e.sites))
	for id := range e.sites {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	flushed := 0
	for _, id := range ids {
		e.mu.RLock()
		site := e.sites[id]
		e.mu.RUnlock()
		if site == nil {
			continue
		}

		site.mu.Lock()
		if !site.dirty {
			site.mu.Unlock()
			continue
		}
		row := e.statsRowLocked(id, site)
		site.dirty = false
		site.mu.Unlock()

		if err := e.store.Upsert(ctx, row); err != nil {
			e.logger.Error("flush failed", "website_id", id, "error", err)
			e.metrics.IncFlushFailed()
			site.mu.Lock()
			site.dirty = true
			site.mu.Unlock()
			continue
		}
		flushed++
	}

	if flushed > 0 {
		e.metrics.ObserveFlushDuration(time.Since(start))
	}
}

// statsRowLocked builds the persistence row. Caller holds site.mu.
func (e *Engine) statsRowLocked(websiteID string, site *siteState) *model.WebsiteStats {
	now := e.now()
	cutoff := now.Add(-e.livenessWindow)
	var active int64
	for _, lastSeen := range site.clients {
		if !lastSeen.Before(cutoff) {
			active++
		}
	}

	byCountry := make(map[string]int64, len(site.byCountry))
	for k, v := range site.byCountry {
		byCountry[k] = v
	}
	byCity := make(map[string]int64, len(site.byCity))
	for k, v := range site.byCity {
		byCity[k] = v
	}

	return &model.WebsiteStats{
		WebsiteID:           websiteID,
		ActiveUsers:         active,
		TotalClicks:         site.totalClicks,
		AvgScrollPercentage: site.scroll.value(),
		ScrollSamples:       site.scroll.samples(),
		AvgTimeOnPageMs:     site.timeOnPage.value(),
		TimeSamples:         site.timeOnPage.samples(),
		UsersByCountry:      byCountry,
		UsersByCity:         byCity,
		UpdatedAt:           now,
	}
}

// RecomputeAll rebuilds every site's aggregate from the raw event journal
// and replaces the in-memory state with the rebuilt values. Live client
// presence is kept; counters and means are reset to the recomputed truth.
func (e *Engine) RecomputeAll(ctx context.Context, recomputer Recomputer) (int, error) {
	ids, err := recomputer.ListWebsiteIDs(ctx)
	if err != nil {
		e.metrics.IncRecomputeRun("failed")
		return 0, fmt.Errorf("list website ids: %w", err)
	}

	now := e.now()
	recomputed := 0
	var firstErr error

	for _, id := range ids {
		row, err := recomputer.Recompute(ctx, id, e.livenessWindow, now)
		if err != nil {
			if errors.Is(err, repository.ErrRecomputeLocked) {
				e.logger.Info("recompute skipped, site locked", "website_id", id)
				continue
			}
			e.logger.Error("recompute failed", "website_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		e.adoptRecomputed(id, row)
		recomputed++
	}

	if firstErr != nil {
		e.metrics.IncRecomputeRun("failed")
		return recomputed, firstErr
	}
	e.metrics.IncRecomputeRun("success")
	e.logger.Info("recompute run complete", "sites", recomputed)
	return recomputed, nil
}

// adoptRecomputed replaces a site's counters with recomputed values while
// keeping the live presence map. Geo first-seen markers reset so the
// rebuilt breakdowns become the new baseline.
func (e *Engine) adoptRecomputed(websiteID string, row *model.WebsiteStats) {
	e.mu.RLock()
	site := e.sites[websiteID]
	e.mu.RUnlock()
	if site == nil {
		// Not in memory yet; next hydration loads the recomputed row.
		return
	}

	site.mu.Lock()
	site.totalClicks = row.TotalClicks
	site.scroll.restore(row.AvgScrollPercentage, row.ScrollSamples)
	site.timeOnPage.restore(row.AvgTimeOnPageMs, row.TimeSamples)
	site.byCountry = make(map[string]int64, len(row.UsersByCountry))
	for k, v := range row.UsersByCountry {
		site.byCountry[k] = v
	}
	site.byCity = make(map[string]int64, len(row.UsersByCity))
	for k, v := range row.UsersByCity {
		site.byCity[k] = v
	}
	site.geoSeen = make(map[string]struct{})
	site.dirty = false
	snapshot := e.snapshotLocked(websiteID, site, e.now())
	site.mu.Unlock()

	e.publish(snapshot)
}

// getOrCreateSite returns the in-memory state for a website, hydrating
// from storage on first touch so means and counters survive restarts.
func (e *Engine) getOrCreateSite(ctx context.Context, websiteID string) (*siteState, error) {
	e.mu.RLock()
	site := e.sites[websiteID]
	e.mu.RUnlock()
	if site != nil {
		return site, nil
	}

	persisted, err := e.store.GetByWebsiteID(ctx, websiteID)
	if err != nil && !errors.Is(err, repository.ErrStatsNotFound) {
		return nil, fmt.Errorf("hydrate site %s: %w", websiteID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Another goroutine may have won the race while we were loading.
	if existing := e.sites[websiteID]; existing != nil {
		return existing, nil
	}

	site = &siteState{
		clients:   make(map[string]time.Time),
		geoSeen:   make(map[string]struct{}),
		byCountry: make(map[string]int64),
		byCity:    make(map[string]int64),
	}
	if persisted != nil {
		site.totalClicks = persisted.TotalClicks
		site.scroll.restore(persisted.AvgScrollPercentage, persisted.ScrollSamples)
		site.timeOnPage.restore(persisted.AvgTimeOnPageMs, persisted.TimeSamples)
		for k, v := range persisted.UsersByCountry {
			site.byCountry[k] = v
		}
		for k, v := range persisted.UsersByCity {
			site.byCity[k] = v
		}
	}

	e.sites[websiteID] = site
	return site, nil
}

func (e *Engine) publish(snapshot *model.StatsSnapshot) {
	if e.publisher != nil {
		e.publisher.Publish(snapshot)
	}
}
