// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/dheerajmandava/proovd-sub004/internal/service"
)

// EventInput is one event in a widget batch. Country and city are
// optional client-supplied geo hints that win over edge headers.
type EventInput struct {
	ClientID string  `json:"client_id"`
	Type     string  `json:"type"`
	Value    float64 `json:"value,omitempty"`
	Country  string  `json:"country,omitempty"`
	City     string  `json:"city,omitempty"`
}

// EventBatchRequest is the request body for POST /api/v1/events.
// APIKey and ClientID are body-level fallbacks for beacon-style clients;
// a per-event client_id wins over the batch-level one.
type EventBatchRequest struct {
	APIKey   string       `json:"apiKey,omitempty"`
	ClientID string       `json:"client_id,omitempty"`
	Events   []EventInput `json:"events"`
}

// ToIncomingEvents converts the request batch to service inputs.
func (r *EventBatchRequest) ToIncomingEvents() []service.IncomingEvent {
	events := make([]service.IncomingEvent, 0, len(r.Events))
	for _, e := range r.Events {
		clientID := e.ClientID
		if clientID == "" {
			clientID = r.ClientID
		}
		events = append(events, service.IncomingEvent{
			ClientID: clientID,
			Type:     e.Type,
			Value:    e.Value,
			Country:  e.Country,
			City:     e.City,
		})
	}
	return events
}

// EventBatchResponse reports per-batch acceptance. Rejected events carry
// their batch index and a machine-readable reason.
type EventBatchResponse struct {
	Accepted int                  `json:"accepted"`
	Rejected int                  `json:"rejected"`
	Errors   []service.EventError `json:"errors,omitempty"`
}

// ErrorResponse represents an API error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable code and human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
