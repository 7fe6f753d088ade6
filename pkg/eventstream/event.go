package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCallTracked is emitted after a tracked call completes.
	EventTypeCallTracked = "ollamatrace.call.tracked"
)

// CallTrackedEvent is a transport-neutral event payload for a completed call.
type CallTrackedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Call          tracked.Call `json:"call"`
}

// EventSource identifies where the call originated.
type EventSource struct {
	Project     string `json:"project,omitempty"`
	ServiceName string `json:"service_name"`
}

// NewCallTrackedEvent wraps a completed call in a versioned event envelope.
func NewCallTrackedEvent(source EventSource, call *tracked.Call) *CallTrackedEvent {
	return &CallTrackedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCallTracked,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Call:          *call,
	}
}
