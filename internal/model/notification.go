// Package model defines domain entities for the application.
package model

import (
	"slices"
	"strings"
	"time"
)

// NotificationStatus represents the notification lifecycle state.
type NotificationStatus string

const (
	NotificationDraft    NotificationStatus = "draft"
	NotificationActive   NotificationStatus = "active"
	NotificationArchived NotificationStatus = "archived"
)

// NotificationType categorizes the social-proof message rendered by the widget.
type NotificationType string

const (
	NotificationRecentActivity NotificationType = "recent_activity"
	NotificationLiveVisitors   NotificationType = "live_visitors"
	NotificationAnnouncement   NotificationType = "announcement"
	NotificationReview         NotificationType = "review"
)

// ValidNotificationTypes contains all accepted notification types.
var ValidNotificationTypes = []NotificationType{
	NotificationRecentActivity,
	NotificationLiveVisitors,
	NotificationAnnouncement,
	NotificationReview,
}

// IsValidNotificationType checks if a notification type is valid.
func IsValidNotificationType(nt NotificationType) bool {
	return slices.Contains(ValidNotificationTypes, nt)
}

// Notification represents authored social-proof content for a website.
type Notification struct {
	ID        string             `json:"id"`
	WebsiteID string             `json:"website_id"`
	Type      NotificationType   `json:"type"`
	Status    NotificationStatus `json:"status"`

	// Content
	Title    string `json:"title"`
	Message  string `json:"message"`
	ImageURL string `json:"image_url,omitempty"`
	URL      string `json:"url,omitempty"`

	// Display rules
	MaxDisplays int64    `json:"max_displays"` // 0 = unlimited
	TargetPages []string `json:"target_pages,omitempty"`

	// Aggregate counters (incremented on first-time track records only)
	DisplayCount int64 `json:"display_count"`
	ClickCount   int64 `json:"click_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the notification may be served to visitors.
func (n *Notification) IsActive() bool {
	return n.Status == NotificationActive
}

// DisplayBudgetExhausted returns true when the max-shows rule blocks serving.
func (n *Notification) DisplayBudgetExhausted() bool {
	return n.MaxDisplays > 0 && n.DisplayCount >= n.MaxDisplays
}

// MatchesPage reports whether the notification targets the given page path.
// An empty target list matches every page; entries ending in "*" are treated
// as prefixes.
func (n *Notification) MatchesPage(path string) bool {
	if len(n.TargetPages) == 0 {
		return true
	}
	for _, target := range n.TargetPages {
		if prefix, ok := strings.CutSuffix(target, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if target == path {
			return true
		}
	}
	return false
}
