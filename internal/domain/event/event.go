package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by producers and subscribers
const (
	KeyActor      = "actor"
	KeyStatus     = "status"
	KeyLevel      = "level"
	KeyCostCenter = "cost_center"
	KeyStepIDs    = "step_ids"
	KeyComment    = "comment"
	KeyVersion    = "version"
)

// Event represents a domain event raised after a transaction commits
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	HeaderID      int64                  `json:"header_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event starting its own correlation chain
func NewEvent(eventType Type, headerID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, headerID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, headerID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		HeaderID:      headerID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with one more payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetPayloadInts retrieves an int64 slice from the payload
func (e *Event) GetPayloadInts(key string) []int64 {
	switch v := e.Payload[key].(type) {
	case []int64:
		return v
	case []interface{}:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int64:
				out = append(out, n)
			case float64:
				out = append(out, int64(n))
			}
		}
		return out
	}
	return nil
}
