package event

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Run lifecycle
	RunStarted   EventType = "run.started"
	RunCompleted EventType = "run.completed"
	RunFailed    EventType = "run.failed"

	// Iteration lifecycle
	IterationStarted   EventType = "iteration.started"
	IterationCompleted EventType = "iteration.completed"

	// Agent activity
	StateEntered     EventType = "state.entered"
	ActionDispatched EventType = "action.dispatched"
	PagingApplied    EventType = "paging.applied"
	MemoryPersisted  EventType = "memory.persisted"
)

// Event carries data about a lifecycle occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]interface{}) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}
