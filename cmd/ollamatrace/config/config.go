// Package configcmder provides the config command for managing persistent
// ollamatrace configuration stored in the .ollamatrace/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ollamatrace/pkg/cliui"
	"github.com/papercomputeco/ollamatrace/pkg/config"
	"github.com/papercomputeco/ollamatrace/pkg/dotdir"
)

const configLongDesc string = `Manage persistent ollamatrace configuration.

Configuration is stored as config.toml in the .ollamatrace/ directory.
Environment variables (OLLAMATRACE_*, OLLAMA_HOST, OPIK_*) and CLI flags
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  ollama.host,
  tracing.enabled, tracing.opik_url, tracing.endpoint, tracing.api_key,
  tracing.workspace, tracing.project_name, tracing.service_name,
  tracing.sampling_ratio, tracing.export_timeout, tracing.insecure,
  tracing.metrics_enabled, tracing.metrics_endpoint,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  eventstream.provider, eventstream.brokers, eventstream.topic

tracing.sampling_ratio is between 0 and 1 and defaults to 1. A ratio of 0
keeps spans from being sampled; tracing.enabled = false turns export off.

Use subcommands to get, set, or list configuration values:
  ollamatrace config set <key> <value>    Set a configuration value
  ollamatrace config get <key>            Get a configuration value
  ollamatrace config list                 List all configuration values

Examples:
  ollamatrace config set tracing.project_name ollama-demo
  ollamatrace config set storage.driver sqlite
  ollamatrace config get ollama.host
  ollamatrace config list`

const configShortDesc string = "Manage persistent ollamatrace configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func printTarget(w io.Writer, target string) {
	if target == "" {
		cliui.Line(w, cliui.DimStyle.Render("No config file found. Using defaults."))
		return
	}
	cliui.Line(w, cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func dotdirTarget(configDir string) (string, error) {
	target, err := dotdir.NewManager().Ensure(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return target, nil
}
