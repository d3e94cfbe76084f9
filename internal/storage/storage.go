package storage

import "time"

// Event is one handled chat message and the reply it produced.
// Events are expected to be appended in chronological order.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	Reply       string    `json:"reply"`
	Stage       string    `json:"stage"`
	Learned     bool      `json:"learned,omitempty"`
}

// Recorder abstracts persistence of interaction events.
// LoadInteractions should return events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
