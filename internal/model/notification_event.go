// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"time"
)

// TrackAction is the closed set of trackable notification interactions.
type TrackAction string

const (
	ActionDisplay TrackAction = "display"
	ActionClick   TrackAction = "click"
)

// ParseTrackAction validates and converts a raw action string.
func ParseTrackAction(raw string) (TrackAction, error) {
	switch TrackAction(raw) {
	case ActionDisplay:
		return ActionDisplay, nil
	case ActionClick:
		return ActionClick, nil
	default:
		return "", fmt.Errorf("unknown track action %q", raw)
	}
}

// NotificationEvent records one (notification, visitor, action) interaction.
// The composite key is the idempotency guard: at most one record per triple
// is ever counted toward statistics, so retried client calls are no-ops.
type NotificationEvent struct {
	NotificationID string      `json:"notification_id"`
	ClientID       string      `json:"client_id"`
	Action         TrackAction `json:"action"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
