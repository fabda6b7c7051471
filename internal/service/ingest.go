package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dheerajmandava/proovd-sub004/internal/journal"
	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// Ingest errors.
var (
	ErrEmptyBatch    = errors.New("event batch is empty")
	ErrBatchTooLarge = errors.New("event batch exceeds limit")
)

// DefaultMaxBatchSize caps how many events one request may carry.
const DefaultMaxBatchSize = 50

var clientIDRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

const maxScrollPercent = 100

// Aggregator folds validated events into live per-site state.
type Aggregator interface {
	Apply(ctx context.Context, websiteID string, events []*model.ActivityEvent) error
}

// JournalPublisher forwards accepted events to the durable journal.
type JournalPublisher interface {
	PublishBatchAsync(events []journal.ActivityEventPayload)
}

// IncomingEvent is one unvalidated event from a widget batch. Country
// and City are optional client-supplied overrides for the edge-derived
// request geo.
type IncomingEvent struct {
	ClientID string
	Type     string
	Value    float64
	Country  string
	City     string
}

// ClientGeo carries request-derived location for geo breakdowns.
type ClientGeo struct {
	CountryCode string
	CityName    string
}

// EventError reports why one event in a batch was refused.
type EventError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// IngestResult summarizes a partially accepted batch.
type IngestResult struct {
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Errors   []EventError `json:"errors,omitempty"`
}

// IngestService validates widget event batches and feeds the aggregation
// engine and the raw event journal.
type IngestService struct {
	websites     *WebsiteService
	engine       Aggregator
	journal      JournalPublisher
	logger       *slog.Logger
	metrics      metrics.Recorder
	maxBatchSize int
	now          func() time.Time
}

// NewIngestService creates a new IngestService.
func NewIngestService(websites *WebsiteService, engine Aggregator, publisher JournalPublisher, logger *slog.Logger, recorder metrics.Recorder) *IngestService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &IngestService{
		websites:     websites,
		engine:       engine,
		journal:      publisher,
		logger:       logger.With("component", "service.ingest"),
		metrics:      recorder,
		maxBatchSize: DefaultMaxBatchSize,
		now:          time.Now,
	}
}

// SetMaxBatchSize overrides the default batch size limit.
func (s *IngestService) SetMaxBatchSize(size int) {
	if size > 0 {
		s.maxBatchSize = size
	}
}

// SetClock overrides the time source for tests.
func (s *IngestService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Ingest accepts a batch for the website behind apiKey. Acceptance is
// per event: valid events are folded in even when siblings are refused,
// and the result reports each refusal with its batch index. A batch-level
// error means nothing was accepted.
func (s *IngestService) Ingest(ctx context.Context, apiKey string, batch []IncomingEvent, geo ClientGeo) (*IngestResult, error) {
	site, err := s.websites.Resolve(ctx, apiKey)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.metrics.IncBatchRejected("unauthorized")
		}
		return nil, err
	}

	if len(batch) == 0 {
		s.metrics.IncBatchRejected("malformed")
		return nil, ErrEmptyBatch
	}
	if len(batch) > s.maxBatchSize {
		s.metrics.IncBatchRejected("malformed")
		return nil, fmt.Errorf("%w: %d events, limit %d", ErrBatchTooLarge, len(batch), s.maxBatchSize)
	}

	now := s.now().UTC()
	result := &IngestResult{}
	accepted := make([]*model.ActivityEvent, 0, len(batch))

	for i, incoming := range batch {
		if reason := validateIncomingEvent(incoming); reason != "" {
			result.Rejected++
			result.Errors = append(result.Errors, EventError{Index: i, Reason: reason})
			continue
		}

		country := normalizeCountry(incoming.Country)
		if country == "" {
			country = normalizeCountry(geo.CountryCode)
		}
		city := strings.TrimSpace(incoming.City)
		if city == "" {
			city = strings.TrimSpace(geo.CityName)
		}

		accepted = append(accepted, &model.ActivityEvent{
			ID:          ulid.Make().String(),
			WebsiteID:   site.ID,
			ClientID:    incoming.ClientID,
			Type:        model.EventType(incoming.Type),
			Value:       incoming.Value,
			CountryCode: country,
			CityName:    city,
			OccurredAt:  now,
		})
	}

	result.Accepted = len(accepted)

	if len(accepted) > 0 {
		if err := s.engine.Apply(ctx, site.ID, accepted); err != nil {
			return nil, fmt.Errorf("apply events: %w", err)
		}

		payloads := make([]journal.ActivityEventPayload, len(accepted))
		for i, event := range accepted {
			payloads[i] = journal.PayloadFromEvent(event)
		}
		s.journal.PublishBatchAsync(payloads)
	}

	s.metrics.IncEventsAccepted(result.Accepted)
	s.metrics.IncEventsDropped(result.Rejected)

	if result.Rejected > 0 {
		s.logger.Debug("batch partially accepted",
			"website_id", site.ID,
			"accepted", result.Accepted,
			"rejected", result.Rejected,
		)
	}

	return result, nil
}

// validateIncomingEvent returns an empty string for valid events, or a
// short machine-readable refusal reason.
func validateIncomingEvent(event IncomingEvent) string {
	if event.ClientID == "" {
		return "missing_client_id"
	}
	if !clientIDRegex.MatchString(event.ClientID) {
		return "invalid_client_id"
	}
	if !model.IsValidEventType(model.EventType(event.Type)) {
		return "unknown_event_type"
	}
	if event.Value < 0 {
		return "negative_value"
	}
	if event.Type == string(model.EventScroll) && event.Value > maxScrollPercent {
		return "scroll_out_of_range"
	}
	return ""
}

// normalizeCountry uppercases a two-letter country code and discards
// anything else.
func normalizeCountry(code string) string {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return ""
	}
	return strings.ToUpper(code)
}

// ExtractCountryCode reads the edge-provided country header value.
// Returns empty string if the header is missing or not a 2-letter code.
func ExtractCountryCode(headerValue string) string {
	return normalizeCountry(headerValue)
}
