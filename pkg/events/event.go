package events

import (
	"context"
	"time"
)

// Event types published on the bus. The subject is "events.<type>".
const (
	TypeQueryCompleted         = "query.completed"
	TypeReviewCompleted        = "review.completed"
	TypeCollaborationCompleted = "collaboration.completed"
	TypeDocumentIngested       = "document.ingested"
	TypeDocumentUploaded       = "document.uploaded"
	TypeDocumentDeleted        = "document.deleted"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "query.completed").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BaseEvent is the only Event implementation; constructors below fill it.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

// String reads a string field from an event payload decoded from JSON.
func String(e Event, key string) string {
	v, _ := e.Payload()[key].(string)
	return v
}
