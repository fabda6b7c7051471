package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dheerajmandava/proovd-sub004/internal/journal"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

func TestIngestService_PartialAcceptance(t *testing.T) {
	svc, site, agg, pub := newIngestTestService(t)

	batch := []IncomingEvent{
		{ClientID: "client-a", Type: "heartbeat", Value: 5000},
		{ClientID: "client-b", Type: "hover"}, // unknown type
		{ClientID: "client-a", Type: "click"},
		{ClientID: "", Type: "click"},                         // missing client
		{ClientID: "client-c", Type: "scroll", Value: 150},    // out of range
		{ClientID: "client-c", Type: "scroll", Value: 80},     // fine
		{ClientID: "client-d", Type: "heartbeat", Value: -10}, // negative
	}

	result, err := svc.Ingest(context.Background(), site.APIKey, batch, ClientGeo{CountryCode: "de", CityName: " Berlin "})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if result.Accepted != 3 {
		t.Errorf("Accepted = %d, want 3", result.Accepted)
	}
	if result.Rejected != 4 {
		t.Errorf("Rejected = %d, want 4", result.Rejected)
	}

	wantReasons := map[int]string{
		1: "unknown_event_type",
		3: "missing_client_id",
		4: "scroll_out_of_range",
		6: "negative_value",
	}
	if len(result.Errors) != len(wantReasons) {
		t.Fatalf("Errors = %d entries, want %d", len(result.Errors), len(wantReasons))
	}
	for _, e := range result.Errors {
		if wantReasons[e.Index] != e.Reason {
			t.Errorf("Errors[index %d] = %q, want %q", e.Index, e.Reason, wantReasons[e.Index])
		}
	}

	applied := agg.applied()
	if len(applied) != 3 {
		t.Fatalf("applied = %d events, want 3", len(applied))
	}
	for _, event := range applied {
		if event.WebsiteID != site.ID {
			t.Errorf("event WebsiteID = %q, want %q", event.WebsiteID, site.ID)
		}
		if event.ID == "" {
			t.Error("event ID should be assigned")
		}
		if event.CountryCode != "DE" {
			t.Errorf("CountryCode = %q, want normalized DE", event.CountryCode)
		}
		if event.CityName != "Berlin" {
			t.Errorf("CityName = %q, want trimmed Berlin", event.CityName)
		}
	}

	if got := pub.published(); got != 3 {
		t.Errorf("journaled = %d events, want 3", got)
	}
}

func TestIngestService_UnauthorizedKey(t *testing.T) {
	svc, _, agg, _ := newIngestTestService(t)

	_, err := svc.Ingest(context.Background(), "pv_test_00000000000000000000000000000000",
		[]IncomingEvent{{ClientID: "a", Type: "click"}}, ClientGeo{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got: %v", err)
	}
	if len(agg.applied()) != 0 {
		t.Error("nothing should reach the engine for an unauthorized key")
	}
}

func TestIngestService_BatchLimits(t *testing.T) {
	svc, site, _, _ := newIngestTestService(t)
	svc.SetMaxBatchSize(2)

	_, err := svc.Ingest(context.Background(), site.APIKey, nil, ClientGeo{})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got: %v", err)
	}

	over := []IncomingEvent{
		{ClientID: "a", Type: "click"},
		{ClientID: "b", Type: "click"},
		{ClientID: "c", Type: "click"},
	}
	_, err = svc.Ingest(context.Background(), site.APIKey, over, ClientGeo{})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("Expected ErrBatchTooLarge, got: %v", err)
	}
}

func TestIngestService_AllRejectedSkipsEngine(t *testing.T) {
	svc, site, agg, pub := newIngestTestService(t)

	result, err := svc.Ingest(context.Background(), site.APIKey,
		[]IncomingEvent{{ClientID: "a", Type: "hover"}}, ClientGeo{})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.Accepted != 0 || result.Rejected != 1 {
		t.Errorf("result = %+v, want 0 accepted, 1 rejected", result)
	}
	if len(agg.applied()) != 0 || pub.published() != 0 {
		t.Error("fully rejected batch should touch neither engine nor journal")
	}
}

func TestExtractCountryCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"DE", "DE"},
		{"us", "US"},
		{" fr ", "FR"},
		{"DEU", ""},
		{"", ""},
		{"X", ""},
	}
	for _, tc := range cases {
		if got := ExtractCountryCode(tc.in); got != tc.want {
			t.Errorf("ExtractCountryCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// ============================================================================
// Fakes
// ============================================================================

type fakeAggregator struct {
	mu     sync.Mutex
	events []*model.ActivityEvent
}

func (a *fakeAggregator) Apply(_ context.Context, _ string, events []*model.ActivityEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, events...)
	return nil
}

func (a *fakeAggregator) applied() []*model.ActivityEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*model.ActivityEvent(nil), a.events...)
}

type fakeJournalPublisher struct {
	mu sync.Mutex
	n  int
}

func (p *fakeJournalPublisher) PublishBatchAsync(events []journal.ActivityEventPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n += len(events)
}

func (p *fakeJournalPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func newIngestTestService(t *testing.T) (*IngestService, *model.Website, *fakeAggregator, *fakeJournalPublisher) {
	t.Helper()
	store, _, websites := newWebsiteTestService(t)

	site := servableSite(t, "ingest.example.com")
	store.add(site)

	agg := &fakeAggregator{}
	pub := &fakeJournalPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewIngestService(websites, agg, pub, logger, nil)
	return svc, site, agg, pub
}
