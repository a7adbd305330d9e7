// Package stream turns per-node state updates into the typed event
// stream clients consume. It computes deltas between consecutive flat
// states, filters bulk fields, and suppresses duplicate emissions by
// content hash.
package stream

// EventType tags one stream event.
type EventType string

const (
	EventStateUpdate       EventType = "state_update"
	EventAssistantResponse EventType = "assistant_response"
	EventAttentionOverlay  EventType = "attention_overlay"
	EventError             EventType = "error"
)

// Event is one tagged record on the engine-to-client stream.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ErrorEvent builds an error event.
func ErrorEvent(sessionID, message string) Event {
	return Event{Type: EventError, SessionID: sessionID, Error: message}
}
