// Package ollamatracecmder is the root ollamatrace command: it sends one
// fixed prompt to a local Ollama model through a traced call and prints the
// reply.
package ollamatracecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	callscmder "github.com/papercomputeco/ollamatrace/cmd/ollamatrace/calls"
	configcmder "github.com/papercomputeco/ollamatrace/cmd/ollamatrace/config"
	versioncmder "github.com/papercomputeco/ollamatrace/cmd/version"
	"github.com/papercomputeco/ollamatrace/pkg/chatmodel"
	"github.com/papercomputeco/ollamatrace/pkg/chatmodel/ollama"
	"github.com/papercomputeco/ollamatrace/pkg/config"
	eventstreamutils "github.com/papercomputeco/ollamatrace/pkg/eventstream/utils"
	"github.com/papercomputeco/ollamatrace/pkg/llm"
	"github.com/papercomputeco/ollamatrace/pkg/logger"
	"github.com/papercomputeco/ollamatrace/pkg/searchpath"
	"github.com/papercomputeco/ollamatrace/pkg/storage"
	storageutils "github.com/papercomputeco/ollamatrace/pkg/storage/utils"
	"github.com/papercomputeco/ollamatrace/pkg/tracing"
)

const ollamatraceLongDesc string = `ollamatrace sends one prompt to a local Ollama model and prints the reply.

The call is wrapped in a tracked function named call_ollama. Its input, output,
duration and model settings are exported as OpenTelemetry spans to an
Opik-compatible backend, and optionally kept in local storage or published to
Kafka.

Configuration is read from .ollamatrace/config.toml, OLLAMATRACE_* variables,
OLLAMA_HOST, OPIK_URL_OVERRIDE, OPIK_API_KEY, OPIK_WORKSPACE and OPIK_PROJECT_NAME.

Examples:
  ollamatrace
  ollamatrace --ollama-host http://gpu-box:11434
  ollamatrace --storage sqlite && ollamatrace calls list`

const ollamatraceShortDesc string = "ollamatrace - traced Ollama call"

const (
	// trackedName is the span and tracked-call name of the instrumented call.
	trackedName = "call_ollama"

	prompt      = "Hi!!"
	model       = "deepseek-r1:1.5b"
	temperature = 0.8
)

// ErrNoResponse is returned when the chat model reports neither a reply nor an error.
var ErrNoResponse = errors.New("chat model returned no response")

// ConfigureFunc performs the one-time tracing setup.
type ConfigureFunc func(ctx context.Context, cfg tracing.Config, opts ...tracing.Option) (*tracing.Client, error)

// FactoryFunc builds the chat model factory from the resolved connection settings.
type FactoryFunc func(cfg ollama.Config) chatmodel.Factory

type ollamaTraceCommander struct {
	configDir string
	debug     bool
	logJSON   bool
	logFile   string

	ollamaHost    string
	project       string
	storageDriver string
	sqlitePath    string
	postgresDSN   string

	configure  ConfigureFunc
	newFactory FactoryFunc

	logger *slog.Logger
}

var rootFlags = []string{
	config.FlagOllamaHost,
	config.FlagProject,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
}

func NewOllamaTraceCmd() *cobra.Command {
	return newRootCmd(tracing.Configure, ollama.NewFactory)
}

func newRootCmd(configure ConfigureFunc, newFactory FactoryFunc) *cobra.Command {
	cmder := &ollamaTraceCommander{
		configure:  configure,
		newFactory: newFactory,
	}

	cmd := &cobra.Command{
		Use:           "ollamatrace",
		Short:         ollamatraceShortDesc,
		Long:          ollamatraceLongDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			log, closeLog, err := cmder.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = log

			err = cmder.run(ctx, cmd)
			if err != nil {
				cmder.logger.Error("ollamatrace failed", "error", err)
			}
			return err
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&cmder.debug, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&cmder.configDir, "config-dir", "", "Override path to .ollamatrace/ config directory")
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write logs to stderr as JSON instead of styled text")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs with source locations to this file")

	config.AddStringFlag(cmd, config.Flags, config.FlagOllamaHost, &cmder.ollamaHost)
	config.AddStringFlag(cmd, config.Flags, config.FlagProject, &cmder.project)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)

	// Add subcommands
	cmd.AddCommand(versioncmder.NewVersionCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(callscmder.NewCallsCmd())

	return cmd
}

func (c *ollamaTraceCommander) run(ctx context.Context, cmd *cobra.Command) error {
	c.guardPath()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, rootFlags)
	cfg := config.FromViper(v)

	client, err := c.configureTracing(ctx, cfg)
	if err != nil {
		return err
	}

	factory := c.newFactory(ollama.Config{
		BaseURL:   cfg.Ollama.Host,
		Transport: client.WrapHTTPTransport(http.DefaultTransport),
		Logger:    c.logger,
	})

	callOllama := tracing.TrackWith(client, trackedName, func(ctx context.Context, in string) (*llm.ChatResponse, error) {
		m, err := factory(chatmodel.Options{Model: model, Temperature: temperature})
		if err != nil {
			return nil, err
		}
		resp, err := m.Invoke(ctx, in)
		if err == nil && resp == nil {
			return nil, ErrNoResponse
		}
		return resp, err
	})

	resp, err := callOllama(ctx, prompt)
	if err != nil {
		if shutdownErr := tracing.Shutdown(client); shutdownErr != nil {
			c.logger.Warn("tracing shutdown failed", "error", shutdownErr)
		}
		return err
	}

	if _, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Text()); err != nil {
		return err
	}

	// The reply is already printed; a failed flush is not worth a non-zero exit.
	if err := tracing.Shutdown(client); err != nil {
		c.logger.Warn("tracing shutdown failed", "error", err)
	}
	return nil
}

// newLogger builds the stderr logger and, with --log-file, fans records out
// to a JSON file sink as well. The returned func closes the file.
func (c *ollamaTraceCommander) newLogger(w io.Writer) (*slog.Logger, func() error, error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.logJSON),
		logger.WithJSON(c.logJSON),
		logger.WithWriter(w),
	)
	if c.logFile == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithSource(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), f.Close, nil
}

// guardPath removes the binary's own directory from PATH so a like-named
// local binary cannot shadow the installed ollama runtime.
func (c *ollamaTraceCommander) guardPath() {
	dir, err := searchpath.ExecutableDir()
	if err != nil {
		c.logger.Debug("skipping path guard", "error", err)
		return
	}

	removed, err := searchpath.GuardEnv("PATH", dir)
	if err != nil {
		c.logger.Warn("path guard failed", "error", err)
		return
	}
	c.logger.Debug("path guard", "dir", dir, "removed", removed)
}

// configureTracing builds the local recorders and hands them to the tracing
// client. The recorders are closed here if the client cannot be built.
func (c *ollamaTraceCommander) configureTracing(ctx context.Context, cfg *config.Config) (*tracing.Client, error) {
	driver, err := storageutils.NewDriverFromConfig(ctx, cfg.Storage, c.configDir, c.logger)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		Provider: cfg.EventStream.Provider,
		Brokers:  cfg.EventStream.Brokers,
		Topic:    cfg.EventStream.Topic,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating event publisher: %w", err), closeDriver(driver))
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		c.logger.Debug("opentelemetry error", "error", err)
	}))

	tcfg := tracing.Config{
		Enabled:         cfg.Tracing.Enabled,
		ProjectName:     cfg.Tracing.ProjectName,
		Endpoint:        cfg.Tracing.OTLPEndpoint(),
		APIKey:          cfg.Tracing.APIKey,
		Workspace:       cfg.Tracing.Workspace,
		ServiceName:     cfg.Tracing.ServiceName,
		SamplingRatio:   tracing.Ratio(cfg.Tracing.SamplingRatio),
		ExportTimeout:   cfg.Tracing.ExportTimeout,
		Insecure:        cfg.Tracing.Insecure,
		MetricsEnabled:  cfg.Tracing.MetricsEnabled,
		MetricsEndpoint: cfg.Tracing.MetricsEndpoint,
	}

	c.logger.Debug("configuring tracing",
		"enabled", tcfg.Enabled,
		"endpoint", tcfg.Endpoint,
		"project", tcfg.ProjectName,
		"storage", cfg.Storage.Driver,
		"eventstream", cfg.EventStream.Provider,
	)

	client, err := c.configure(ctx, tcfg,
		tracing.WithLogger(c.logger),
		tracing.WithDriver(driver),
		tracing.WithPublisher(publisher),
	)
	if err != nil {
		return nil, errors.Join(err, closeDriver(driver), publisher.Close())
	}
	return client, nil
}

func closeDriver(d storage.Driver) error {
	if d == nil {
		return nil
	}
	return d.Close()
}
