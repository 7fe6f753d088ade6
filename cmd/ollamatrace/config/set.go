package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ollamatrace/pkg/cliui"
	"github.com/papercomputeco/ollamatrace/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .ollamatrace/ directory. Keys use dotted notation matching
the TOML section structure. List values such as eventstream.brokers
are comma-separated.

Examples:
  ollamatrace config set ollama.host http://gpu-box:11434
  ollamatrace config set tracing.sampling_ratio 0.25
  ollamatrace config set eventstream.brokers kafka-1:9092,kafka-2:9092`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd.OutOrStdout(), args[0], args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runSet(w io.Writer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKeyError(key)
	}

	// Set always writes, so make sure a directory exists to write into.
	target, err := dotdirTarget(configDir)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(target)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger.GetTarget())

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	cliui.Line(w, cliui.SuccessMark, "Set", cliui.KeyStyle.Render(key), "=", cliui.ValueStyle.Render(value))
	return nil
}
