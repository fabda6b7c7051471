package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dheerajmandava/proovd-sub004/internal/handler/dto"
	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
	"github.com/dheerajmandava/proovd-sub004/internal/service"
)

func newEventsTestHandler(t *testing.T) (*EventsHandler, *fakeWebsiteStore, *fakeAggregator) {
	t.Helper()

	store := newFakeWebsiteStore()
	agg := &fakeAggregator{}
	svc := service.NewIngestService(
		newWebsiteService(store),
		agg,
		&fakeJournalPublisher{},
		testLogger(),
		metrics.NewNoop(),
	)
	return NewEventsHandler(svc, testLogger()), store, agg
}

func postEvents(h *EventsHandler, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	return rec
}

func TestEvents_PartialAcceptance(t *testing.T) {
	h, store, agg := newEventsTestHandler(t)
	site := servableSite(t)
	store.add(site)

	body := `{"events":[
		{"client_id":"c1","type":"pageview"},
		{"client_id":"c2","type":"scroll","value":250},
		{"client_id":"c3","type":"click"}
	]}`

	rec := postEvents(h, site.APIKey, body)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}

	var resp dto.EventBatchResponse
	if err := decodeBody(t, rec, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Accepted != 2 || resp.Rejected != 1 {
		t.Errorf("accepted/rejected = %d/%d, want 2/1", resp.Accepted, resp.Rejected)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Index != 1 || resp.Errors[0].Reason != "scroll_out_of_range" {
		t.Errorf("unexpected errors: %+v", resp.Errors)
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	if len(agg.events) != 2 {
		t.Errorf("engine received %d events, want 2", len(agg.events))
	}
}

func TestEvents_BodyKeyAndClientFallback(t *testing.T) {
	h, store, agg := newEventsTestHandler(t)
	site := servableSite(t)
	store.add(site)

	// sendBeacon callers cannot set headers, so the key and a shared
	// client id may ride in the body instead.
	body := `{"apiKey":"` + site.APIKey + `","client_id":"c-shared","events":[
		{"type":"pageview"},
		{"type":"click"}
	]}`

	rec := postEvents(h, "", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	if len(agg.events) != 2 {
		t.Fatalf("engine received %d events, want 2", len(agg.events))
	}
	for _, e := range agg.events {
		if e.ClientID != "c-shared" {
			t.Errorf("event client id = %q, want batch-level c-shared", e.ClientID)
		}
	}
}

func TestEvents_GeoFromHeadersAndBody(t *testing.T) {
	h, store, agg := newEventsTestHandler(t)
	site := servableSite(t)
	store.add(site)

	// The first event trusts the edge headers, the second carries its
	// own geo and wins over them.
	body := `{"events":[
		{"client_id":"c1","type":"pageview"},
		{"client_id":"c2","type":"pageview","country":"fr","city":"Paris"}
	]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, site.APIKey)
	req.Header.Set("CF-IPCountry", "de")
	req.Header.Set("CF-IPCity", "Berlin")
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	if len(agg.events) != 2 {
		t.Fatalf("engine received %d events, want 2", len(agg.events))
	}
	if agg.events[0].CountryCode != "DE" || agg.events[0].CityName != "Berlin" {
		t.Errorf("event 0 geo = %q/%q, want DE/Berlin from headers",
			agg.events[0].CountryCode, agg.events[0].CityName)
	}
	if agg.events[1].CountryCode != "FR" || agg.events[1].CityName != "Paris" {
		t.Errorf("event 1 geo = %q/%q, want FR/Paris from the event body",
			agg.events[1].CountryCode, agg.events[1].CityName)
	}
}

func TestEvents_JunkCountryHeaderDiscarded(t *testing.T) {
	h, store, agg := newEventsTestHandler(t)
	site := servableSite(t)
	store.add(site)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events",
		strings.NewReader(`{"events":[{"client_id":"c1","type":"pageview"}]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, site.APIKey)
	req.Header.Set("CF-IPCountry", "Germany")
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	if len(agg.events) != 1 {
		t.Fatalf("engine received %d events, want 1", len(agg.events))
	}
	if agg.events[0].CountryCode != "" {
		t.Errorf("country = %q for a non-ISO header value, want empty", agg.events[0].CountryCode)
	}
}

func TestEvents_UnknownKeyUniform401(t *testing.T) {
	h, store, _ := newEventsTestHandler(t)

	// Pending sites refuse identically to unknown keys.
	pending := servableSite(t)
	pending.VerificationStatus = "pending"
	store.add(pending)

	keys := []string{
		"pv_live_00000000000000000000000000000000",
		pending.APIKey,
		"not-a-key",
		"",
	}

	for _, key := range keys {
		rec := postEvents(h, key, `{"events":[{"client_id":"c1","type":"pageview"}]}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("key %q: status = %d, want 401", key, rec.Code)
		}
		if resp := decodeError(t, rec); resp.Error.Code != "UNAUTHORIZED" {
			t.Errorf("key %q: code = %q, want UNAUTHORIZED", key, resp.Error.Code)
		}
	}
}

func TestEvents_MalformedBody(t *testing.T) {
	h, store, agg := newEventsTestHandler(t)
	site := servableSite(t)
	store.add(site)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{"events":[`, "INVALID_JSON"},
		{"empty batch", `{"events":[]}`, "EMPTY_BATCH"},
		{"missing events field", `{}`, "EMPTY_BATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postEvents(h, site.APIKey, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	if len(agg.events) != 0 {
		t.Errorf("engine received %d events from malformed batches, want 0", len(agg.events))
	}
}

func TestEvents_BatchTooLarge(t *testing.T) {
	h, store, _ := newEventsTestHandler(t)
	site := servableSite(t)
	store.add(site)

	var sb strings.Builder
	sb.WriteString(`{"events":[`)
	for i := 0; i < service.DefaultMaxBatchSize+1; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"client_id":"c1","type":"pageview"}`)
	}
	sb.WriteString(`]}`)

	rec := postEvents(h, site.APIKey, sb.String())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "BATCH_TOO_LARGE" {
		t.Errorf("code = %q, want BATCH_TOO_LARGE", resp.Error.Code)
	}
}
