// Package cmd provides the CLI commands for CodeScout.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/config"
	"github.com/codescout-dev/codescout/internal/index"
	"github.com/codescout-dev/codescout/internal/logging"
	"github.com/codescout-dev/codescout/internal/pipeline"
	"github.com/codescout-dev/codescout/internal/store"
	"github.com/codescout-dev/codescout/pkg/version"
)

// rootOptions are flags shared by every subcommand.
type rootOptions struct {
	configDir string
	dataDir   string
	logLevel  string
}

// NewRootCmd creates the root command for the codescout CLI.
func NewRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "codescout",
		Short: "Repository processing pipeline for code search",
		Long: `CodeScout processes source repositories into a searchable index
of code entities (functions, classes, methods, imports).

Point it at a git URL or a local directory: it fetches the source,
parses the supported languages, and publishes every entity to the
search index. Reprocessing is incremental; only changed files are
re-parsed and re-published.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("codescout version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configDir, "config", ".", "Directory containing codescout.yaml")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Override the data directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	cmd.AddCommand(newProcessCmd(&opts))
	cmd.AddCommand(newStatusCmd(&opts))
	cmd.AddCommand(newListCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newDeleteCmd(&opts))
	cmd.AddCommand(newServeCmd(&opts))
	cmd.AddCommand(newWatchCmd(&opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig loads configuration and applies flag overrides.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

// runtimeEnv bundles the wired service stack a command runs against.
type runtimeEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *pipeline.Service

	store   *store.SQLiteStore
	cleanup []func()
}

// close tears the stack down in reverse construction order.
func (e *runtimeEnv) close() {
	if e.service != nil {
		_ = e.service.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// newRuntime wires config, logging, store, index, and the pipeline
// service. logToStderr is disabled for the MCP server, where stdout
// carries the protocol and stderr stays quiet for well-behaved clients.
func newRuntime(opts *rootOptions, logToStderr bool) (*runtimeEnv, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig(cfg.DataDir)
	logCfg.Level = cfg.Logging.Level
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	logCfg.WriteToStderr = logToStderr

	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)

	env := &runtimeEnv{cfg: cfg, logger: logger, cleanup: []func(){logCleanup}}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		env.close()
		return nil, err
	}
	env.store = st

	idx, err := index.New(cfg.Index, cfg.DataDir)
	if err != nil {
		env.close()
		return nil, err
	}

	env.service = pipeline.NewService(cfg, st, idx, logger)
	return env, nil
}
