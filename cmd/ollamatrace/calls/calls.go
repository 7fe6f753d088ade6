// Package callscmder provides the calls command for inspecting tracked calls
// kept in local storage.
package callscmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ollamatrace/pkg/cliui"
	"github.com/papercomputeco/ollamatrace/pkg/config"
	"github.com/papercomputeco/ollamatrace/pkg/logger"
	"github.com/papercomputeco/ollamatrace/pkg/storage"
	storageutils "github.com/papercomputeco/ollamatrace/pkg/storage/utils"
	"github.com/papercomputeco/ollamatrace/pkg/tracked"
	"github.com/papercomputeco/ollamatrace/pkg/utils"
)

const callsLongDesc string = `Inspect tracked calls kept in local storage.

Calls are only stored when a persistent storage driver is configured:
  ollamatrace config set storage.driver sqlite

Use subcommands to list calls or show a single call:
  ollamatrace calls list         List stored calls, oldest first
  ollamatrace calls show <id>    Print one call as JSON`

const callsShortDesc string = "Inspect tracked calls in local storage"

// previewLen bounds the output preview printed by list.
const previewLen = 60

// ErrNoStorage is returned when no persistent storage driver is configured.
var ErrNoStorage = errors.New("no persistent storage configured: set storage.driver to sqlite or postgres")

type callsCommander struct {
	configDir string
	debug     bool

	sqlitePath    string
	postgresDSN   string
	storageDriver string

	logger *slog.Logger
	driver storage.Driver
}

var callsFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
}

func NewCallsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calls",
		Short: callsShortDesc,
		Long:  callsLongDesc,
	}

	cmd.AddCommand(newCallsSubcommand(&cobra.Command{
		Use:   "list",
		Short: "List stored calls, oldest first",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, c *callsCommander, w io.Writer, _ []string) error {
		return c.runList(ctx, w)
	}))

	cmd.AddCommand(newCallsSubcommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one call as JSON",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, c *callsCommander, w io.Writer, args []string) error {
		return c.runShow(ctx, w, args[0])
	}))

	return cmd
}

// newCallsSubcommand registers the storage flags on cmd and opens the
// configured driver around run.
func newCallsSubcommand(cmd *cobra.Command, run func(context.Context, *callsCommander, io.Writer, []string) error) *cobra.Command {
	cmder := &callsCommander{}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if err := cmder.open(ctx, cmd); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, cmder.driver.Close())
		}()

		return run(ctx, cmder, cmd.OutOrStdout(), args)
	}

	return cmd
}

func (c *callsCommander) open(ctx context.Context, cmd *cobra.Command) error {
	c.configDir, _ = cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, callsFlags)
	cfg := config.FromViper(v)

	switch cfg.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return ErrNoStorage
	}

	c.driver, err = storageutils.NewDriverFromConfig(ctx, cfg.Storage, c.configDir, c.logger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	return nil
}

func (c *callsCommander) runList(ctx context.Context, w io.Writer) error {
	calls, err := c.driver.List(ctx)
	if err != nil {
		return fmt.Errorf("listing calls: %w", err)
	}

	if len(calls) == 0 {
		cliui.Line(w, cliui.DimStyle.Render("No tracked calls."))
		return nil
	}

	for _, call := range calls {
		cliui.Line(w,
			cliui.Mark(callErr(call)),
			cliui.KeyStyle.Render(call.ID),
			call.Name,
			cliui.DimStyle.Render(call.StartedAt.Local().Format("2006-01-02 15:04:05")),
			cliui.DimStyle.Render(cliui.FormatDuration(call.Duration)),
			cliui.ValueStyle.Render(preview(call)),
		)
	}
	return nil
}

func (c *callsCommander) runShow(ctx context.Context, w io.Writer, id string) error {
	call, err := c.driver.Get(ctx, id)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(call, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding call: %w", err)
	}

	_, err = fmt.Fprintln(w, string(out))
	return err
}

func callErr(call *tracked.Call) error {
	if call.Failed() {
		return errors.New(call.Error)
	}
	return nil
}

func preview(call *tracked.Call) string {
	if call.Failed() {
		return utils.Truncate(call.Error, previewLen)
	}
	return utils.Truncate(string(call.Output), previewLen)
}
