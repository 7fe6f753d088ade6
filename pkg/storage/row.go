package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

// Row is the flattened column representation of a tracked.Call shared by the
// SQL drivers. Timestamps are stored as unix nanoseconds and JSON fields as text.
type Row struct {
	ID         string
	Name       string
	Project    string
	TraceID    string
	SpanID     string
	Input      string
	Output     string
	Error      string
	StartedAt  int64
	EndedAt    int64
	DurationNs int64
	Metadata   string
}

// NewRow flattens a call into a Row.
func NewRow(call *tracked.Call) (Row, error) {
	if call == nil {
		return Row{}, ErrNilCall
	}

	row := Row{
		ID:         call.ID,
		Name:       call.Name,
		Project:    call.Project,
		TraceID:    call.TraceID,
		SpanID:     call.SpanID,
		Input:      string(call.Input),
		Output:     string(call.Output),
		Error:      call.Error,
		StartedAt:  call.StartedAt.UnixNano(),
		EndedAt:    call.EndedAt.UnixNano(),
		DurationNs: int64(call.Duration),
	}

	if len(call.Metadata) > 0 {
		meta, err := json.Marshal(call.Metadata)
		if err != nil {
			return Row{}, fmt.Errorf("encoding metadata: %w", err)
		}
		row.Metadata = string(meta)
	}

	return row, nil
}

// Call rebuilds the tracked.Call held by the row.
func (r Row) Call() (*tracked.Call, error) {
	call := &tracked.Call{
		ID:        r.ID,
		Name:      r.Name,
		Project:   r.Project,
		TraceID:   r.TraceID,
		SpanID:    r.SpanID,
		Error:     r.Error,
		StartedAt: time.Unix(0, r.StartedAt).UTC(),
		EndedAt:   time.Unix(0, r.EndedAt).UTC(),
		Duration:  time.Duration(r.DurationNs),
	}

	if r.Input != "" {
		call.Input = json.RawMessage(r.Input)
	}
	if r.Output != "" {
		call.Output = json.RawMessage(r.Output)
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &call.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for call %s: %w", r.ID, err)
		}
	}

	return call, nil
}
