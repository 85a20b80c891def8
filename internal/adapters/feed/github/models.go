package github

import "time"

// Event is a partial GitHub activity event with the fields the feed consumes
type Event struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Public    bool         `json:"public"`
	CreatedAt time.Time    `json:"created_at"`
	Repo      EventRepo    `json:"repo"`
	Payload   EventPayload `json:"payload"`
}

// EventRepo names the repository an event belongs to
type EventRepo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"` // owner/name
}

// EventPayload holds the push fields; other event types leave them empty
type EventPayload struct {
	Ref    string `json:"ref"`
	Head   string `json:"head"`
	Before string `json:"before"`
}

// PushEventType is the only event type the feed renders
const PushEventType = "PushEvent"
