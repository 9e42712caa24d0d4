// Package events is the in-process event bus. The dispatcher publishes order
// lifecycle events on it and the alerting side subscribes, so neither knows
// about the other.
package events

import (
	"context"
	"time"
)

// Event is what travels over the bus.
type Event interface {
	// EventName identifies the event type; subscriptions key on it.
	EventName() string
	// OccurredAt is the publish-side timestamp.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp so concrete events only add their payload.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to whoever subscribed to their name.
type Bus interface {
	// Publish hands the event to every handler subscribed to its name.
	// Handlers run asynchronously; the publisher never waits.
	Publish(ctx context.Context, event Event)

	// PublishSync runs the handlers inline and reports their joined errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the event name, the value the
	// event's EventName returns.
	Subscribe(eventName string, handler Handler)
}
