package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventSessionEnded   EventType = "session_ended"
	EventSessionExpired EventType = "session_expired"
	EventAccessDenied   EventType = "access_denied"
)

// Event represents a session lifecycle event.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the given time.
func NewEvent(eventType EventType, subject string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: at,
		Payload:   payload,
	}
}

// SessionStartedPayload payload.
type SessionStartedPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
	Roles     []string  `json:"roles,omitempty"`
}

// SessionEndedPayload payload.
type SessionEndedPayload struct {
	Reason string `json:"reason"`
}

// AccessDeniedPayload payload.
type AccessDeniedPayload struct {
	Path     string   `json:"path,omitempty"`
	Required []string `json:"required"`
}
