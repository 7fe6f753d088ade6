package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/ollamatrace/pkg/tracing/worker"
	"github.com/papercomputeco/ollamatrace/pkg/tracked"
	"github.com/papercomputeco/ollamatrace/pkg/utils"
)

const (
	AttrInput   = "ollamatrace.input"
	AttrOutput  = "ollamatrace.output"
	AttrProject = "ollamatrace.project"

	// attrMetadataPrefix prefixes metadata keys added with AddMetadata.
	attrMetadataPrefix = "ollamatrace.metadata."

	// maxAttrLen caps input and output span attributes. The full values are
	// kept on the tracked.Call.
	maxAttrLen = 4096
)

// Track wraps fn so every call is traced by the default client. The client
// is resolved at call time, so functions may be wrapped before Configure runs.
func Track[I, O any](name string, fn func(context.Context, I) (O, error)) func(context.Context, I) (O, error) {
	return TrackWith(nil, name, fn)
}

// TrackWith wraps fn so every call is traced by c, or by Default when c is
// nil. The wrapped function returns exactly what fn returns.
func TrackWith[I, O any](c *Client, name string, fn func(context.Context, I) (O, error)) func(context.Context, I) (O, error) {
	return func(ctx context.Context, in I) (O, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		client := c
		if client == nil {
			client = Default()
		}

		state := &callState{}
		call := &tracked.Call{
			ID:        uuid.NewString(),
			Name:      name,
			Project:   client.cfg.ProjectName,
			Input:     encodeJSON(in),
			StartedAt: time.Now().UTC(),
		}

		ctx, span := client.tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String(AttrProject, call.Project),
				attribute.String(AttrInput, utils.Truncate(string(call.Input), maxAttrLen)),
			),
		)
		ctx = context.WithValue(ctx, callStateKey{}, state)

		out, err := fn(ctx, in)

		call.EndedAt = time.Now().UTC()
		call.Duration = call.EndedAt.Sub(call.StartedAt)
		call.Metadata = state.snapshot()

		status := "ok"
		if err != nil {
			status = "error"
			call.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			call.Output = encodeJSON(out)
			span.SetAttributes(attribute.String(AttrOutput, utils.Truncate(string(call.Output), maxAttrLen)))
		}

		for k, v := range call.Metadata {
			span.SetAttributes(attribute.String(attrMetadataPrefix+k, fmt.Sprint(v)))
		}

		if sc := span.SpanContext(); sc.IsValid() {
			call.TraceID = sc.TraceID().String()
			call.SpanID = sc.SpanID().String()
		}
		span.End()

		client.record(ctx, call, status)

		return out, err
	}
}

// AddMetadata attaches a key/value pair to the tracked call running in ctx.
// It is a no-op outside a tracked call.
func AddMetadata(ctx context.Context, key string, value any) {
	if ctx == nil {
		return
	}
	state, ok := ctx.Value(callStateKey{}).(*callState)
	if !ok {
		return
	}
	state.set(key, value)
}

func (c *Client) record(ctx context.Context, call *tracked.Call, status string) {
	attrs := metric.WithAttributes(
		attribute.String("name", call.Name),
		attribute.String("status", status),
	)
	c.callsCounter.Add(ctx, 1, attrs)
	c.durationHist.Record(ctx, float64(call.Duration)/float64(time.Millisecond), attrs)

	if c.pool == nil {
		return
	}
	if !c.pool.Enqueue(worker.Job{Call: call}) {
		c.droppedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("name", call.Name)))
	}
}

type callStateKey struct{}

// callState collects metadata from the wrapped function, which may add it
// from several goroutines.
type callState struct {
	mu       sync.Mutex
	metadata map[string]any
}

func (s *callState) set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		s.metadata = map[string]any{}
	}
	s.metadata[key] = value
}

func (s *callState) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.metadata) == 0 {
		return nil
	}
	return maps.Clone(s.metadata)
}

// encodeJSON encodes v, falling back to its %v form as a JSON string when v
// is not JSON-encodable.
func encodeJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	return b
}
