// Package model defines domain entities for the application.
package model

import "time"

// WebsiteStats represents the rolling aggregate row for one website.
// The aggregation engine is the single writer; dashboards only read snapshots.
type WebsiteStats struct {
	WebsiteID string `json:"website_id"`

	// Live counters
	ActiveUsers int64 `json:"active_users"`
	TotalClicks int64 `json:"total_clicks"`

	// Running means with sample counts so they resume across restarts
	AvgScrollPercentage float64 `json:"avg_scroll_percentage"`
	ScrollSamples       int64   `json:"scroll_samples"`
	AvgTimeOnPageMs     float64 `json:"avg_time_on_page_ms"`
	TimeSamples         int64   `json:"time_samples"`

	// Geo breakdowns (stored as JSONB in Postgres)
	UsersByCountry map[string]int64 `json:"users_by_country,omitempty"`
	UsersByCity    map[string]int64 `json:"users_by_city,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// StatsSnapshot is the wire form pushed to live dashboard subscribers.
// Snapshots are absolute state, not deltas: a reconnecting client needs only
// the latest one.
type StatsSnapshot struct {
	WebsiteID           string           `json:"websiteId"`
	ActiveUsers         int64            `json:"activeUsers"`
	TotalClicks         int64            `json:"totalClicks"`
	AvgScrollPercentage float64          `json:"avgScrollPercentage"`
	AvgTimeOnPageMs     float64          `json:"avgTimeOnPage"`
	UsersByCountry      map[string]int64 `json:"usersByCountry"`
	UsersByCity         map[string]int64 `json:"usersByCity"`
	GeneratedAt         time.Time        `json:"generatedAt"`
}
