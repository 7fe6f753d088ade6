package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/ollamatrace/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable ollamatrace reads for its
// own keys, e.g. OLLAMATRACE_STORAGE_DRIVER.
const EnvPrefix = "OLLAMATRACE"

// envAliases are the variables the Ollama and Opik client libraries read.
// They are honored after the prefixed variable for the same key.
var envAliases = map[string][]string{
	"ollama.host":          {"OLLAMA_HOST"},
	"tracing.opik_url":     {"OPIK_URL_OVERRIDE"},
	"tracing.api_key":      {"OPIK_API_KEY"},
	"tracing.workspace":    {"OPIK_WORKSPACE"},
	"tracing.project_name": {"OPIK_PROJECT_NAME"},
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the OLLAMATRACE_ prefix plus the Ollama and Opik aliases.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (OLLAMATRACE_OLLAMA_HOST, then OLLAMA_HOST, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
		if err := v.ReadInConfig(); err != nil {
			// Config file not found errors are fine, defaults will apply.
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	// 3. Environment variables: OLLAMATRACE_TRACING_ENABLED, OLLAMATRACE_STORAGE_DRIVER, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	return v, nil
}

// FromViper assembles a Config from the resolved viper state.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Ollama: OllamaConfig{
			Host: v.GetString("ollama.host"),
		},
		Tracing: TracingConfig{
			Enabled:         v.GetBool("tracing.enabled"),
			OpikURL:         v.GetString("tracing.opik_url"),
			Endpoint:        v.GetString("tracing.endpoint"),
			APIKey:          v.GetString("tracing.api_key"),
			Workspace:       v.GetString("tracing.workspace"),
			ProjectName:     v.GetString("tracing.project_name"),
			ServiceName:     v.GetString("tracing.service_name"),
			SamplingRatio:   v.GetFloat64("tracing.sampling_ratio"),
			ExportTimeout:   v.GetDuration("tracing.export_timeout"),
			Insecure:        v.GetBool("tracing.insecure"),
			MetricsEnabled:  v.GetBool("tracing.metrics_enabled"),
			MetricsEndpoint: v.GetString("tracing.metrics_endpoint"),
		},
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  brokersFromViper(v),
			Topic:    v.GetString("eventstream.topic"),
		},
	}

	applyDefaults(cfg)

	return cfg
}

// brokersFromViper accepts both a TOML array and a comma-separated env value.
func brokersFromViper(v *viper.Viper) []string {
	var out []string
	for _, item := range v.GetStringSlice("eventstream.brokers") {
		out = append(out, SplitList(item)...)
	}
	return out
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Ollama
	v.SetDefault("ollama.host", d.Ollama.Host)

	// Tracing
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.opik_url", d.Tracing.OpikURL)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.api_key", d.Tracing.APIKey)
	v.SetDefault("tracing.workspace", d.Tracing.Workspace)
	v.SetDefault("tracing.project_name", d.Tracing.ProjectName)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sampling_ratio", d.Tracing.SamplingRatio)
	v.SetDefault("tracing.export_timeout", d.Tracing.ExportTimeout)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
	v.SetDefault("tracing.metrics_enabled", d.Tracing.MetricsEnabled)
	v.SetDefault("tracing.metrics_endpoint", d.Tracing.MetricsEndpoint)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
