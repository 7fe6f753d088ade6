// Package tracked defines the record produced for every instrumented call.
package tracked

import (
	"encoding/json"
	"time"
)

// Call is a single traced unit of work: one invocation of a tracked function.
type Call struct {
	// ID uniquely identifies the call.
	ID string `json:"id"`

	// Name is the name the function was tracked under (e.g. "call_ollama").
	Name string `json:"name"`

	// Project groups calls in the observability backend.
	Project string `json:"project,omitempty"`

	// TraceID and SpanID link the call to its OpenTelemetry span. Both are
	// empty when the span was not sampled.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// Input and Output are the JSON encodings of the argument and return value.
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`

	// Error holds the error message when the call failed.
	Error string `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`

	// Metadata carries values attached by the tracked function itself.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failed reports whether the call returned an error.
func (c *Call) Failed() bool {
	return c.Error != ""
}
