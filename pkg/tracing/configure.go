package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/papercomputeco/ollamatrace/pkg/logger"
)

var (
	// configureOnce ensures Configure only initializes once.
	configureOnce sync.Once

	// configured and configureErr hold the result of the first Configure.
	configured   *Client
	configureErr error

	// globalMu guards global, the client returned by Default.
	globalMu sync.RWMutex
	global   *Client

	disabledOnce   sync.Once
	disabledClient *Client

	// shutdownTimeout bounds Shutdown, recorder drain included.
	shutdownTimeout = 5 * time.Second
)

// Configure performs the process-wide tracing setup and registers the client
// as the default used by Track. It also installs the client's providers as
// the OpenTelemetry globals.
//
// This function is thread-safe and only initializes once. Subsequent calls
// return the result of the first call (either success or error) and ignore
// their arguments.
func Configure(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	configureOnce.Do(func() {
		configured, configureErr = New(ctx, cfg, opts...)
		if configureErr != nil {
			return
		}

		otel.SetTracerProvider(configured.tracerProvider)
		otel.SetMeterProvider(configured.meterProvider)
		otel.SetTextMapPropagator(propagation.TraceContext{})

		globalMu.Lock()
		global = configured
		globalMu.Unlock()
	})

	return configured, configureErr
}

// Default returns the client registered by Configure, or a disabled client
// when Configure has not succeeded. A disabled client still runs tracked
// functions but exports and records nothing.
func Default() *Client {
	globalMu.RLock()
	c := global
	globalMu.RUnlock()
	if c != nil {
		return c
	}

	disabledOnce.Do(func() {
		// A zero Config cannot fail validation.
		disabledClient, _ = New(context.Background(), Config{}, WithLogger(logger.Nop()))
	})
	return disabledClient
}

// Shutdown shuts the client down within a bounded timeout. Recorder calls
// still running at the deadline are cancelled. If c is the default client,
// Default falls back to the disabled client afterwards.
func Shutdown(c *Client) error {
	if c == nil {
		return nil
	}

	globalMu.Lock()
	if global == c {
		global = nil
	}
	globalMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return c.Shutdown(ctx)
}
