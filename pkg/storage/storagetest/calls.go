// Package storagetest holds fixtures shared by the storage driver tests.
package storagetest

import (
	"encoding/json"
	"time"

	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

// NewCall returns a completed call that started at the given offset from a
// fixed base time.
func NewCall(id string, offset time.Duration) *tracked.Call {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Add(offset)
	return &tracked.Call{
		ID:        id,
		Name:      "call_ollama",
		Project:   "Default Project",
		TraceID:   "0af7651916cd43dd8448eb211c80319c",
		SpanID:    "b7ad6b7169203331",
		Input:     json.RawMessage(`"Hi!!"`),
		Output:    json.RawMessage(`{"text":"Hello!"}`),
		StartedAt: started,
		EndedAt:   started.Add(250 * time.Millisecond),
		Duration:  250 * time.Millisecond,
		Metadata:  map[string]any{"model": "llama3.2"},
	}
}
