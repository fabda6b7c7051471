package dto

import (
	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// NotificationResponse is one notification in the widget feed.
// Internal counters and targeting rules are not exposed to visitor
// browsers. Display timings come from the site settings so the widget
// does not need a second request for them.
type NotificationResponse struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Title           string `json:"title"`
	Message         string `json:"message"`
	ImageURL        string `json:"image_url,omitempty"`
	URL             string `json:"url,omitempty"`
	DisplayDuration int    `json:"displayDuration"`
	Delay           int    `json:"delay"`
}

// NotificationListResponse is the feed returned to the widget.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
}

// TrackRequest is the request body for POST /api/v1/notifications/{id}/track.
// ClientID and ClientIDCamel name the same visitor; either spelling is
// accepted and ResolveClientID coalesces them.
type TrackRequest struct {
	APIKey        string `json:"apiKey,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	ClientIDCamel string `json:"clientId,omitempty"`
	Action        string `json:"action"`
}

// ResolveClientID returns the visitor id regardless of which spelling
// the client used. snake_case wins when both are present.
func (r *TrackRequest) ResolveClientID() string {
	if r.ClientID != "" {
		return r.ClientID
	}
	return r.ClientIDCamel
}

// TrackResponse reports whether the interaction counted. Duplicates
// succeed with recorded=false.
type TrackResponse struct {
	Success  bool `json:"success"`
	Recorded bool `json:"recorded"`
}

// ToNotificationResponse converts a Notification model to its widget DTO.
func ToNotificationResponse(n *model.Notification, settings model.WebsiteSettings) NotificationResponse {
	return NotificationResponse{
		ID:              n.ID,
		Type:            string(n.Type),
		Title:           n.Title,
		Message:         n.Message,
		ImageURL:        n.ImageURL,
		URL:             n.URL,
		DisplayDuration: settings.DisplayDurationMs,
		Delay:           settings.DelayMs,
	}
}

// ToNotificationListResponse converts a feed slice.
func ToNotificationListResponse(list []*model.Notification, settings model.WebsiteSettings) NotificationListResponse {
	resp := NotificationListResponse{Notifications: make([]NotificationResponse, 0, len(list))}
	for _, n := range list {
		resp.Notifications = append(resp.Notifications, ToNotificationResponse(n, settings))
	}
	return resp
}
