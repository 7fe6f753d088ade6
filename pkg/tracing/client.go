// Package tracing configures the process-wide tracing client and provides
// Track, the wrapper that turns an ordinary function into a traced call.
//
// A call produces one OpenTelemetry span exported over OTLP/HTTP to an
// Opik-compatible backend, two metric points, and one tracked.Call handed to
// the optional local recorders.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/papercomputeco/ollamatrace/pkg/eventstream"
	"github.com/papercomputeco/ollamatrace/pkg/logger"
	"github.com/papercomputeco/ollamatrace/pkg/storage"
	"github.com/papercomputeco/ollamatrace/pkg/tracing/worker"
	"github.com/papercomputeco/ollamatrace/pkg/utils"
)

const instrumentationName = "github.com/papercomputeco/ollamatrace/pkg/tracing"

// Client owns the tracer and meter providers and the recorder pool.
type Client struct {
	cfg    Config
	logger *slog.Logger

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer

	callsCounter   metric.Int64Counter
	droppedCounter metric.Int64Counter
	durationHist   metric.Float64Histogram

	pool      *worker.Pool
	driver    storage.Driver
	publisher eventstream.Publisher

	exporting   bool
	shutdownFns []func(context.Context) error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a tracing client from cfg. The returned client must be shut
// down to flush spans and drain the recorders.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Nop()
	}

	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid tracing config: %w", err)
	}

	c := &Client{
		cfg:            cfg,
		logger:         o.logger,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		driver:         o.driver,
		publisher:      o.publisher,
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", utils.Version),
		attribute.String("ollamatrace.project", cfg.ProjectName),
	)

	if cfg.Enabled || len(o.spanProcessors) > 0 {
		tpOpts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*cfg.SamplingRatio))),
			sdktrace.WithResource(res),
		}

		if cfg.Enabled {
			traceExporterOptions := []otlptracehttp.Option{
				otlptracehttp.WithEndpointURL(cfg.Endpoint),
				otlptracehttp.WithTimeout(cfg.ExportTimeout),
				otlptracehttp.WithHeaders(cfg.headers()),
			}
			if cfg.Insecure {
				traceExporterOptions = append(traceExporterOptions, otlptracehttp.WithInsecure())
			}
			traceExporter, err := otlptracehttp.New(ctx, traceExporterOptions...)
			if err != nil {
				return nil, fmt.Errorf("initialize otel trace exporter: %w", err)
			}
			tpOpts = append(tpOpts, sdktrace.WithBatcher(traceExporter))
			c.exporting = true
		}

		for _, sp := range o.spanProcessors {
			tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
		}

		tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
		c.tracerProvider = tracerProvider
		c.shutdownFns = append(c.shutdownFns, tracerProvider.Shutdown)
	}

	metricsExporting := cfg.Enabled && cfg.MetricsEnabled
	if metricsExporting || len(o.metricReaders) > 0 {
		mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

		if metricsExporting {
			metricExporterOptions := []otlpmetrichttp.Option{
				otlpmetrichttp.WithEndpointURL(cfg.MetricsEndpoint),
				otlpmetrichttp.WithTimeout(cfg.ExportTimeout),
				otlpmetrichttp.WithHeaders(cfg.headers()),
			}
			if cfg.Insecure {
				metricExporterOptions = append(metricExporterOptions, otlpmetrichttp.WithInsecure())
			}
			metricExporter, err := otlpmetrichttp.New(ctx, metricExporterOptions...)
			if err != nil {
				_ = c.shutdownProviders(context.Background())
				return nil, fmt.Errorf("initialize otel metric exporter: %w", err)
			}
			mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithTimeout(cfg.ExportTimeout),
			)))
		}

		for _, r := range o.metricReaders {
			mpOpts = append(mpOpts, sdkmetric.WithReader(r))
		}

		meterProvider := sdkmetric.NewMeterProvider(mpOpts...)
		c.meterProvider = meterProvider
		c.shutdownFns = append(c.shutdownFns, meterProvider.Shutdown)
	}

	c.tracer = c.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(utils.Version))
	if err := c.initInstruments(); err != nil {
		_ = c.shutdownProviders(context.Background())
		return nil, err
	}

	if c.driver != nil || c.publisher != nil {
		pool, err := worker.NewPool(&worker.Config{
			Driver:    c.driver,
			Publisher: c.publisher,
			Source: eventstream.EventSource{
				Project:     cfg.ProjectName,
				ServiceName: cfg.ServiceName,
			},
			NumWorkers: o.numWorkers,
			Logger:     c.logger,
		})
		if err != nil {
			_ = c.shutdownProviders(context.Background())
			return nil, fmt.Errorf("starting recorder pool: %w", err)
		}
		c.pool = pool
	}

	if c.exporting {
		c.logger.Debug("tracing enabled",
			"endpoint", cfg.Endpoint,
			"project", cfg.ProjectName,
			"metrics_enabled", cfg.MetricsEnabled,
			"sampling_ratio", *cfg.SamplingRatio,
		)
	}

	return c, nil
}

func (c *Client) initInstruments() error {
	meter := c.meterProvider.Meter(instrumentationName)

	var err error
	c.callsCounter, err = meter.Int64Counter(
		"ollamatrace.calls_total",
		metric.WithDescription("Count of tracked calls by name and status."),
	)
	if err != nil {
		return fmt.Errorf("creating calls counter: %w", err)
	}

	c.droppedCounter, err = meter.Int64Counter(
		"ollamatrace.calls_dropped_total",
		metric.WithDescription("Count of tracked calls dropped because the recorder queue was full."),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	c.durationHist, err = meter.Float64Histogram(
		"ollamatrace.call.duration_ms",
		metric.WithDescription("Duration of tracked calls."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	return nil
}

// Enabled reports whether spans are exported to the configured endpoint.
func (c *Client) Enabled() bool {
	return c != nil && c.exporting
}

// Config returns the resolved configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// TracerProvider returns the provider spans are created from.
func (c *Client) TracerProvider() trace.TracerProvider {
	return c.tracerProvider
}

// WrapHTTPTransport wraps an outbound HTTP transport so each request becomes
// a child span of the current tracked call.
func (c *Client) WrapHTTPTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if c == nil {
		return base
	}
	return otelhttp.NewTransport(
		base,
		otelhttp.WithTracerProvider(c.tracerProvider),
		otelhttp.WithMeterProvider(c.meterProvider),
		otelhttp.WithPropagators(propagation.TraceContext{}),
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

// Shutdown drains the recorder pool, flushes and stops the providers, and
// closes the recorders. Later calls return the first result.
func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}

	c.shutdownOnce.Do(func() {
		var errs []error
		if c.pool != nil {
			errs = append(errs, c.pool.Close(ctx))
		}

		errs = append(errs, c.shutdownProviders(ctx))

		if c.driver != nil {
			if err := c.driver.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing storage driver: %w", err))
			}
		}
		if c.publisher != nil {
			if err := c.publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing event publisher: %w", err))
			}
		}

		c.shutdownErr = errors.Join(errs...)
	})

	return c.shutdownErr
}

func (c *Client) shutdownProviders(ctx context.Context) error {
	var errs []error
	for i := len(c.shutdownFns) - 1; i >= 0; i-- {
		if err := c.shutdownFns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.shutdownFns = nil
	return errors.Join(errs...)
}
