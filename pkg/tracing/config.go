package tracing

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the OTLP/HTTP traces endpoint of a locally running Opik.
	DefaultEndpoint = "http://localhost:5173/api/v1/private/otel/v1/traces"

	// DefaultProjectName is the project calls are grouped under when none is set.
	DefaultProjectName = "Default Project"

	DefaultServiceName   = "ollamatrace"
	DefaultExportTimeout = 10 * time.Second
)

// ErrMissingAPIKey is returned when tracing targets a remote backend without credentials.
var ErrMissingAPIKey = errors.New("tracing api key is required for a remote endpoint")

// Config configures the tracing client.
type Config struct {
	// Enabled turns span and metric export on. A disabled client still runs
	// tracked functions and feeds the local recorders.
	Enabled bool

	// ProjectName groups calls in the observability backend.
	//
	// Optional. Defaults to "Default Project".
	ProjectName string

	// Endpoint is the full OTLP/HTTP traces URL.
	//
	// Optional. Defaults to DefaultEndpoint.
	Endpoint string

	// APIKey is sent as the Authorization header. Required when Endpoint is
	// not a loopback address.
	APIKey string

	// Workspace is sent as the Comet-Workspace header.
	Workspace string

	// ServiceName is the service.name resource attribute.
	//
	// Optional. Defaults to "ollamatrace".
	ServiceName string

	// SamplingRatio is the parent-based trace ID ratio. Zero samples
	// nothing.
	//
	// Optional. Defaults to 1 when nil.
	SamplingRatio *float64

	// ExportTimeout bounds each export request.
	//
	// Optional. Defaults to 10s.
	ExportTimeout time.Duration

	// Insecure forces plain HTTP regardless of the endpoint scheme.
	Insecure bool

	// MetricsEnabled turns on OTLP metric export.
	MetricsEnabled bool

	// MetricsEndpoint is the full OTLP/HTTP metrics URL.
	//
	// Optional. Derived from Endpoint by replacing a trailing "/traces" with "/metrics".
	MetricsEndpoint string
}

// CheckAndSetDefaults validates the configuration and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	c.ProjectName = strings.TrimSpace(c.ProjectName)
	if c.ProjectName == "" {
		c.ProjectName = DefaultProjectName
	}

	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}

	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}

	if c.SamplingRatio == nil {
		c.SamplingRatio = Ratio(1)
	}
	if r := *c.SamplingRatio; r < 0 || r > 1 {
		return fmt.Errorf("sampling ratio %v must be between 0 and 1", r)
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = DefaultExportTimeout
	}

	if c.MetricsEndpoint == "" {
		c.MetricsEndpoint = metricsEndpointFor(c.Endpoint)
	}

	if !c.Enabled {
		return nil
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid tracing endpoint %q", c.Endpoint)
	}

	if c.APIKey == "" && !isLoopback(u.Hostname()) {
		return fmt.Errorf("%w: %s", ErrMissingAPIKey, u.Host)
	}

	return nil
}

// headers returns the OTLP request headers an Opik backend expects.
func (c *Config) headers() map[string]string {
	h := map[string]string{}
	if c.APIKey != "" {
		h["Authorization"] = c.APIKey
	}
	if c.Workspace != "" {
		h["Comet-Workspace"] = c.Workspace
	}
	if c.ProjectName != "" {
		h["projectName"] = c.ProjectName
	}
	return h
}

func metricsEndpointFor(traces string) string {
	if base, ok := strings.CutSuffix(traces, "/traces"); ok {
		return base + "/metrics"
	}
	return traces
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Ratio returns a pointer to r for Config.SamplingRatio.
func Ratio(r float64) *float64 {
	return &r
}
