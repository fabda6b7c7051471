// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// EventType represents a visitor activity signal reported by the widget.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventClick     EventType = "click"
	EventScroll    EventType = "scroll"
	EventPageview  EventType = "pageview"
)

// ValidEventTypes contains all accepted activity event types.
var ValidEventTypes = []EventType{EventHeartbeat, EventClick, EventScroll, EventPageview}

// IsValidEventType checks if an event type is in the allowed set.
func IsValidEventType(et EventType) bool {
	return slices.Contains(ValidEventTypes, et)
}

// ActivityEvent represents one reported visitor activity fact.
// Events are transient: folded into per-site aggregates on arrival and
// journaled to the raw event table for recompute and fraud inspection.
type ActivityEvent struct {
	ID          string    `json:"id"` // ULID (time-sortable)
	WebsiteID   string    `json:"website_id"`
	ClientID    string    `json:"client_id"`
	Type        EventType `json:"type"`
	Value       float64   `json:"value,omitempty"` // Scroll depth percent or time on page ms
	CountryCode string    `json:"country_code,omitempty"`
	CityName    string    `json:"city_name,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
