package model

import (
	"testing"
	"time"
)

func TestVerificationStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from VerificationStatus
		to   VerificationStatus
		want bool
	}{
		{"pending to verified", VerificationPending, VerificationVerified, true},
		{"pending to failed", VerificationPending, VerificationFailed, true},
		{"failed retried to pending", VerificationFailed, VerificationPending, true},
		{"failed cannot skip to verified", VerificationFailed, VerificationVerified, false},
		{"verified is terminal", VerificationVerified, VerificationPending, false},
		{"verified cannot fail", VerificationVerified, VerificationFailed, false},
		{"pending cannot self-loop", VerificationPending, VerificationPending, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestWebsite_IsServable(t *testing.T) {
	t.Parallel()

	site := &Website{
		Enabled:            true,
		VerificationStatus: VerificationVerified,
	}
	if !site.IsServable() {
		t.Error("verified enabled site should be servable")
	}

	site.VerificationStatus = VerificationPending
	if site.IsServable() {
		t.Error("pending site must not be servable")
	}

	site.VerificationStatus = VerificationFailed
	if site.IsServable() {
		t.Error("failed site must not be servable")
	}

	site.VerificationStatus = VerificationVerified
	site.Enabled = false
	if site.IsServable() {
		t.Error("soft-disabled site must not be servable")
	}
}

func TestWebsite_CachedRoundtrip(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second)
	site := &Website{
		ID:                 "site-123",
		Domain:             "shop.example.com",
		APIKey:             "pv_live_abc",
		VerificationStatus: VerificationVerified,
		Enabled:            true,
		Settings: WebsiteSettings{
			Position:          PositionBottomRight,
			Theme:             "dark",
			DisplayDurationMs: 4000,
			DelayMs:           1500,
			MaxNotifications:  3,
		},
		UpdatedAt: now,
	}

	got := site.ToCachedWebsite().ToWebsite(site.APIKey)

	if got.ID != site.ID {
		t.Errorf("ID = %s, want %s", got.ID, site.ID)
	}
	if got.Domain != site.Domain {
		t.Errorf("Domain = %s, want %s", got.Domain, site.Domain)
	}
	if !got.IsServable() {
		t.Error("roundtripped site should remain servable")
	}
	if got.Settings != site.Settings {
		t.Errorf("Settings = %+v, want %+v", got.Settings, site.Settings)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}
}
