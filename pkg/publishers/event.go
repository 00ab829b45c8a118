package publishers

import (
	"time"

	"github.com/samvad-hq/fileio-go/internal/domain"
)

// EventType names a file lifecycle transition.
type EventType string

const (
	EventUploaded EventType = "uploaded"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventExpired  EventType = "expired"
)

// Event represents the payload published downstream.
type Event struct {
	Type       EventType  `json:"type"`
	Key        string     `json:"key"`
	Name       string     `json:"name,omitempty"`
	Link       string     `json:"link,omitempty"`
	Size       int64      `json:"size,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewEvent constructs an Event of the given type for a ledger record.
func NewEvent(typ EventType, rec domain.FileRecord) Event {
	evt := Event{
		Type:       typ,
		Key:        rec.Key,
		Name:       rec.Name,
		Link:       rec.Link,
		Size:       rec.Size,
		OccurredAt: time.Now().UTC(),
	}
	if !rec.ExpiresAt.IsZero() {
		at := rec.ExpiresAt.UTC()
		evt.ExpiresAt = &at
	}
	return evt
}

// attributes are the routing attributes attached by queue and topic sinks.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type": string(e.Type),
		"file_key":   e.Key,
	}
}
