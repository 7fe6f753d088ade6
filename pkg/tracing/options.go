package tracing

import (
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/papercomputeco/ollamatrace/pkg/eventstream"
	"github.com/papercomputeco/ollamatrace/pkg/storage"
)

// Option configures a Client created with New.
type Option func(*options)

type options struct {
	driver         storage.Driver
	publisher      eventstream.Publisher
	spanProcessors []sdktrace.SpanProcessor
	metricReaders  []sdkmetric.Reader
	logger         *slog.Logger
	numWorkers     uint
}

// WithDriver persists every tracked call to the given storage driver.
// The client closes the driver on Shutdown.
func WithDriver(d storage.Driver) Option {
	return func(o *options) {
		o.driver = d
	}
}

// WithPublisher publishes a CallTrackedEvent for every tracked call.
// The client closes the publisher on Shutdown.
func WithPublisher(p eventstream.Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithSpanProcessor registers an additional span processor. Spans are
// recorded through it even when export is disabled.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.spanProcessors = append(o.spanProcessors, sp)
	}
}

// WithMetricReader registers an additional metric reader. Instruments are
// recorded through it even when metric export is disabled.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		o.metricReaders = append(o.metricReaders, r)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithWorkers sets the number of background recorder workers.
func WithWorkers(n uint) Option {
	return func(o *options) {
		o.numWorkers = n
	}
}
