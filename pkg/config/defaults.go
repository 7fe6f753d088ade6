package config

import "time"

const (
	defaultOllamaHost = "http://localhost:11434"

	defaultOpikURL       = "http://localhost:5173/api"
	defaultProjectName   = "Default Project"
	defaultServiceName   = "ollamatrace"
	defaultSamplingRatio = 1.0
	defaultExportTimeout = 10 * time.Second

	defaultStorageDriver = "none"

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "ollamatrace.calls"

	// opikOTLPTracesPath is the OTLP/HTTP traces route under an Opik API base URL.
	opikOTLPTracesPath = "/v1/private/otel/v1/traces"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Ollama: OllamaConfig{
			Host: defaultOllamaHost,
		},
		Tracing: TracingConfig{
			Enabled:       true,
			OpikURL:       defaultOpikURL,
			ProjectName:   defaultProjectName,
			ServiceName:   defaultServiceName,
			SamplingRatio: defaultSamplingRatio,
			ExportTimeout: defaultExportTimeout,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
