package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent ollamatrace configuration stored as
// config.toml in the .ollamatrace/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Ollama      OllamaConfig      `toml:"ollama"`
	Tracing     TracingConfig     `toml:"tracing"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// OllamaConfig holds the connection settings for the Ollama backend.
// Model and temperature are fixed by the program and not configurable.
type OllamaConfig struct {
	Host string `toml:"host,omitempty"`
}

// TracingConfig holds settings for the tracing client and its OTLP export.
type TracingConfig struct {
	Enabled bool `toml:"enabled"`

	// OpikURL is the base URL of an Opik API, e.g. "http://localhost:5173/api".
	// The OTLP traces endpoint is derived from it unless Endpoint is set.
	OpikURL  string `toml:"opik_url,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`

	APIKey      string `toml:"api_key,omitempty"`
	Workspace   string `toml:"workspace,omitempty"`
	ProjectName string `toml:"project_name,omitempty"`
	ServiceName string `toml:"service_name,omitempty"`

	SamplingRatio float64       `toml:"sampling_ratio"`
	ExportTimeout time.Duration `toml:"export_timeout,omitempty"`
	Insecure      bool          `toml:"insecure,omitempty"`

	MetricsEnabled  bool   `toml:"metrics_enabled,omitempty"`
	MetricsEndpoint string `toml:"metrics_endpoint,omitempty"`
}

// StorageConfig selects the optional local store for tracked calls.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig selects the optional event stream for tracked calls.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// OTLPEndpoint returns the traces endpoint: Endpoint when set, otherwise
// the Opik OTLP route under OpikURL.
func (t TracingConfig) OTLPEndpoint() string {
	if t.Endpoint != "" {
		return t.Endpoint
	}
	if t.OpikURL == "" {
		return ""
	}
	return strings.TrimRight(t.OpikURL, "/") + opikOTLPTracesPath
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func boolKey(field func(c *Config) *bool, name string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"ollama.host": stringKey(func(c *Config) *string { return &c.Ollama.Host }),

	"tracing.enabled":          boolKey(func(c *Config) *bool { return &c.Tracing.Enabled }, "tracing.enabled"),
	"tracing.opik_url":         stringKey(func(c *Config) *string { return &c.Tracing.OpikURL }),
	"tracing.endpoint":         stringKey(func(c *Config) *string { return &c.Tracing.Endpoint }),
	"tracing.api_key":          stringKey(func(c *Config) *string { return &c.Tracing.APIKey }),
	"tracing.workspace":        stringKey(func(c *Config) *string { return &c.Tracing.Workspace }),
	"tracing.project_name":     stringKey(func(c *Config) *string { return &c.Tracing.ProjectName }),
	"tracing.service_name":     stringKey(func(c *Config) *string { return &c.Tracing.ServiceName }),
	"tracing.insecure":         boolKey(func(c *Config) *bool { return &c.Tracing.Insecure }, "tracing.insecure"),
	"tracing.metrics_enabled":  boolKey(func(c *Config) *bool { return &c.Tracing.MetricsEnabled }, "tracing.metrics_enabled"),
	"tracing.metrics_endpoint": stringKey(func(c *Config) *string { return &c.Tracing.MetricsEndpoint }),
	"tracing.sampling_ratio": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Tracing.SamplingRatio, 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for tracing.sampling_ratio: %w", err)
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("invalid value for tracing.sampling_ratio: %v is not between 0 and 1", f)
			}
			c.Tracing.SamplingRatio = f
			return nil
		},
	},
	"tracing.export_timeout": {
		get: func(c *Config) string {
			if c.Tracing.ExportTimeout == 0 {
				return ""
			}
			return c.Tracing.ExportTimeout.String()
		},
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for tracing.export_timeout: %w", err)
			}
			c.Tracing.ExportTimeout = d
			return nil
		},
	},

	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error { c.EventStream.Brokers = SplitList(v); return nil },
	},
}

// SplitList splits a comma-separated value, dropping blank items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
