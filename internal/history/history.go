package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventPhase        EventType = "phase"
	EventProcessStart EventType = "process_start"
	EventProcessStop  EventType = "process_stop"
)

// Event is one supervisor lifecycle record to be exported to external
// systems (audit/statistics). Phase events carry the supervisor phase;
// process events carry the managed process name and pid.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	Phase      string    `json:"phase,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for lifecycle events. Implementations must be safe
// for concurrent use. Send failures are treated as best-effort by callers.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
