// Package bus provides the event bus abstraction agentcore publishes its
// lifecycle events on: an in-memory implementation for single-process runs
// and a NATS implementation for external consumers.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subjects published by the agent service.
const (
	SubjectTurnStarted  = "agent.turn.started"
	SubjectPlanUpdated  = "agent.plan.updated"
	SubjectStateChanged = "agent.state.changed"

	// Output events are published as agent.output.<type>, so subscribers
	// can match all of them with SubjectOutputAll.
	SubjectOutputPrefix = "agent.output."
	SubjectOutputAll    = "agent.output.>"
)

// Event represents a message on the event bus
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"` // Service that produced the event
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent creates a new event with a UUID and current timestamp
func NewEvent(eventType, source string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventHandler is a function that handles an event
type EventHandler func(ctx context.Context, event *Event) error

// Subscription represents an active subscription
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus interface for event bus operations
type EventBus interface {
	// Publish sends an event to a subject
	Publish(ctx context.Context, subject string, event *Event) error

	// Subscribe creates a subscription to a subject pattern
	Subscribe(subject string, handler EventHandler) (Subscription, error)

	// QueueSubscribe creates a queue subscription for load balancing
	QueueSubscribe(subject, queue string, handler EventHandler) (Subscription, error)

	// Close closes the connection
	Close()

	// IsConnected returns connection status
	IsConnected() bool
}
