// Package journal captures raw activity events for durable replay.
//
// Ingest folds events into in-memory aggregates immediately; the journal
// is the durable copy that the periodic recompute and fraud inspection
// read from. Events flow through a Redis stream so a slow database never
// backs up the ingest path.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

const (
	// StreamKey is the Redis stream for activity events.
	StreamKey = "stream:activity_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:activity_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 200000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// ActivityEventPayload is the compressed event format for the Redis stream.
type ActivityEventPayload struct {
	ID          string  `json:"id"`
	WebsiteID   string  `json:"wid"`
	ClientID    string  `json:"cid"`
	Type        string  `json:"ty"`
	Value       float64 `json:"v,omitempty"`
	CountryCode string  `json:"cc,omitempty"`
	CityName    string  `json:"ct,omitempty"`
	OccurredAt  int64   `json:"t"` // Unix milliseconds
}

// PayloadFromEvent converts a validated event to its stream form.
func PayloadFromEvent(event *model.ActivityEvent) ActivityEventPayload {
	return ActivityEventPayload{
		ID:          event.ID,
		WebsiteID:   event.WebsiteID,
		ClientID:    event.ClientID,
		Type:        string(event.Type),
		Value:       event.Value,
		CountryCode: event.CountryCode,
		CityName:    event.CityName,
		OccurredAt:  event.OccurredAt.UnixMilli(),
	}
}

// Publisher enqueues activity events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new journal event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "journal.publisher"),
		metrics: recorder,
	}
}

// Publish adds an activity event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event ActivityEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishBatchAsync publishes a batch without blocking the caller.
// Errors are logged but not returned; the in-memory aggregate already
// holds these events, so a lost journal write costs replay fidelity only.
func (p *Publisher) PublishBatchAsync(events []ActivityEventPayload) {
	if len(events) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout*time.Duration(len(events)))
		defer cancel()

		for _, event := range events {
			if _, err := p.Publish(ctx, event); err != nil {
				p.logger.Warn("failed to journal activity event",
					"website_id", event.WebsiteID,
					"event_id", event.ID,
					"error", err,
				)
				p.metrics.IncJournalPublished("dropped")
				continue
			}
			p.metrics.IncJournalPublished("success")
		}
	}()
}
