// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// VerificationStatus represents the domain ownership verification state.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// IsValid checks if the verification status is a known state.
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
// PENDING may resolve to VERIFIED or FAILED; FAILED may be retried back to
// PENDING. VERIFIED is terminal.
func (s VerificationStatus) CanTransitionTo(next VerificationStatus) bool {
	switch s {
	case VerificationPending:
		return next == VerificationVerified || next == VerificationFailed
	case VerificationFailed:
		return next == VerificationPending
	default:
		return false
	}
}

// Widget position constants.
const (
	PositionBottomLeft  = "bottom-left"
	PositionBottomRight = "bottom-right"
	PositionTopLeft     = "top-left"
	PositionTopRight    = "top-right"
)

// WebsiteSettings holds per-site widget display configuration.
type WebsiteSettings struct {
	Position          string `json:"position"`
	Theme             string `json:"theme"`
	DisplayDurationMs int    `json:"display_duration_ms"`
	DelayMs           int    `json:"delay_ms"`
	MaxNotifications  int    `json:"max_notifications"`
}

// DefaultSettings returns the widget settings applied at onboarding.
func DefaultSettings() WebsiteSettings {
	return WebsiteSettings{
		Position:          PositionBottomLeft,
		Theme:             "light",
		DisplayDurationMs: 5000,
		DelayMs:           3000,
		MaxNotifications:  5,
	}
}

// Website represents a customer site served by the widget.
type Website struct {
	ID                 string             `json:"id"`
	OwnerID            string             `json:"owner_id"`
	Domain             string             `json:"domain"`
	APIKey             string             `json:"api_key"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerificationToken  string             `json:"-"` // Proof token, never exposed via widget endpoints
	Settings           WebsiteSettings    `json:"settings"`
	Enabled            bool               `json:"enabled"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsVerified returns true if domain ownership has been proven.
func (w *Website) IsVerified() bool {
	return w.VerificationStatus == VerificationVerified
}

// IsServable returns true if widget endpoints may serve this site.
// Unverified or soft-disabled sites are refused to prevent abuse of the
// public endpoints before domain ownership is proven.
func (w *Website) IsServable() bool {
	return w.Enabled && w.IsVerified()
}

// CachedWebsite represents website data stored in the Redis lookup cache.
// Uses string types for Redis hash compatibility.
type CachedWebsite struct {
	ID                string `redis:"id"`
	Domain            string `redis:"domain"`
	Status            string `redis:"status"`
	Enabled           string `redis:"enabled"` // "1" or "0"
	Position          string `redis:"position"`
	Theme             string `redis:"theme"`
	DisplayDurationMs string `redis:"display_duration_ms"`
	DelayMs           string `redis:"delay_ms"`
	MaxNotifications  string `redis:"max_notifications"`
	UpdatedAt         string `redis:"updated_at"` // Unix timestamp
}

// ToWebsite converts CachedWebsite to the Website domain model.
func (c *CachedWebsite) ToWebsite(apiKey string) *Website {
	site := &Website{
		ID:                 c.ID,
		Domain:             c.Domain,
		APIKey:             apiKey,
		VerificationStatus: VerificationStatus(c.Status),
		Enabled:            c.Enabled == "1",
		Settings: WebsiteSettings{
			Position: c.Position,
			Theme:    c.Theme,
		},
	}

	if v, err := strconv.Atoi(c.DisplayDurationMs); err == nil {
		site.Settings.DisplayDurationMs = v
	}
	if v, err := strconv.Atoi(c.DelayMs); err == nil {
		site.Settings.DelayMs = v
	}
	if v, err := strconv.Atoi(c.MaxNotifications); err == nil {
		site.Settings.MaxNotifications = v
	}
	if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
		site.UpdatedAt = time.Unix(ts, 0)
	}

	return site
}

// ToCachedWebsite converts a Website to its Redis cache representation.
func (w *Website) ToCachedWebsite() *CachedWebsite {
	return &CachedWebsite{
		ID:                w.ID,
		Domain:            w.Domain,
		Status:            string(w.VerificationStatus),
		Enabled:           boolToString(w.Enabled),
		Position:          w.Settings.Position,
		Theme:             w.Settings.Theme,
		DisplayDurationMs: strconv.Itoa(w.Settings.DisplayDurationMs),
		DelayMs:           strconv.Itoa(w.Settings.DelayMs),
		MaxNotifications:  strconv.Itoa(w.Settings.MaxNotifications),
		UpdatedAt:         strconv.FormatInt(w.UpdatedAt.Unix(), 10),
	}
}

// boolToString converts boolean to "1" or "0".
func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
