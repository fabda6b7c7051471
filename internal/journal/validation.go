package journal

import (
	"fmt"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

const (
	maxClientIDLength = 64
	maxCityLength     = 100
	maxScrollPercent  = 100
)

// ValidateActivityEventPayload validates a journaled event before it is
// written to the database. Malformed payloads go to the dead-letter
// stream instead of poisoning the batch.
func ValidateActivityEventPayload(payload ActivityEventPayload) error {
	if payload.ID == "" {
		return fmt.Errorf("id is required")
	}
	if payload.WebsiteID == "" {
		return fmt.Errorf("website_id is required")
	}
	if payload.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if len(payload.ClientID) > maxClientIDLength {
		return fmt.Errorf("client_id too long")
	}
	if !model.IsValidEventType(model.EventType(payload.Type)) {
		return fmt.Errorf("unknown event type %q", payload.Type)
	}
	if payload.Type == string(model.EventScroll) && (payload.Value < 0 || payload.Value > maxScrollPercent) {
		return fmt.Errorf("scroll value out of range")
	}
	if payload.Value < 0 {
		return fmt.Errorf("value must not be negative")
	}
	if payload.CountryCode != "" && len(payload.CountryCode) != 2 {
		return fmt.Errorf("country_code must be 2 chars")
	}
	if len(payload.CityName) > maxCityLength {
		return fmt.Errorf("city_name too long")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}
