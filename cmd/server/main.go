package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vinodismyname/sheetagent/config"
	"github.com/vinodismyname/sheetagent/internal/ops"
	"github.com/vinodismyname/sheetagent/internal/registry"
	"github.com/vinodismyname/sheetagent/internal/runtime"
	"github.com/vinodismyname/sheetagent/internal/security"
	"github.com/vinodismyname/sheetagent/internal/store"
	"github.com/vinodismyname/sheetagent/internal/telemetry"
	"github.com/vinodismyname/sheetagent/pkg/version"
)

// flags shared by every subcommand
type rootFlags struct {
	configPath  string
	logLevel    string
	allowedDirs []string
	readOnly    bool
	model       string
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "sheetagent",
		Short: "Spreadsheet tables for LLM agents",
		Long: `sheetagent loads spreadsheet sheets as named in-memory tables and exposes
filtering, aggregation, joins, cell edits, undo and save as MCP tools.

Logs go to stderr; stdout carries the MCP transport or exec results.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.StringSliceVar(&f.allowedDirs, "allowed-dir", nil, "Directory load_table and save_table may access (repeatable)")
	pf.BoolVar(&f.readOnly, "read-only", false, "Hide and reject tools that change tables or write files")
	pf.StringVar(&f.model, "model", "gpt-4", "Agent model name used to report the context window")

	root.AddCommand(newServeCmd(f, stderr), newExecCmd(f, stdout, stderr), newVersionCmd(stdout))
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, version.String())
		},
	}
}

func newServeCmd(f *rootFlags, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool catalog over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(f, stderr)
			if err != nil {
				return err
			}
			ctx := logger.WithContext(cmd.Context())

			cat, err := newCatalog(cfg, logger)
			if err != nil {
				return err
			}

			limits := runtime.LimitsFromConfig(cfg)
			runtimeController := runtime.NewController(limits)
			runtimeMW := runtime.NewMiddleware(runtimeController)

			toolRegistry := registry.New()
			readOnlyFilter := registry.NewReadOnlyFilter(cfg.ReadOnly)

			srv := server.NewMCPServer(
				"sheetagent",
				version.Version(),
				server.WithToolCapabilities(true),
				server.WithRecovery(),
				server.WithHooks(telemetry.NewHooks(logger).Server()),
				server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
				server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
					return readOnlyFilter.FilterTools(ctx, tools)
				}),
			)
			registry.RegisterCatalogTools(srv, toolRegistry, cat)

			logger.Info().
				Ctx(ctx).
				Str("version", version.Version()).
				Int("max_concurrent_requests", limits.MaxConcurrentRequests).
				Int("max_tables", limits.MaxTables).
				Dur("operation_timeout", limits.OperationTimeout).
				Bool("read_only", cfg.ReadOnly).
				Str("model", f.model).
				Int("model_context_size", toolRegistry.ModelContextSize(f.model)).
				Msg("server bootstrap configured")

			if err := server.ServeStdio(srv); err != nil {
				logger.Error().Err(err).Msg("stdio transport stopped")
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(f *rootFlags, stderr io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if len(f.allowedDirs) > 0 {
		cfg.AllowedDirs = f.allowedDirs
	}
	if f.readOnly {
		cfg.ReadOnly = true
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := zlog.Output(stderr).Level(level).With().Str("service", "sheetagent").Logger()
	return cfg, logger, nil
}

// newCatalog builds the table store and operation catalog. Without allowed
// directories the catalog has no path guard and file tools are refused.
func newCatalog(cfg *config.Config, logger zerolog.Logger) (*ops.Catalog, error) {
	var guard ops.PathGuard
	if len(cfg.AllowedDirs) > 0 {
		secMgr, err := security.NewManager(cfg.AllowedDirs, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed directories: %w", err)
		}
		if err := secMgr.ValidateConfig(); err != nil {
			return nil, err
		}
		logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")
		guard = secMgr
	} else {
		logger.Warn().Msg("no allowed directories configured; load_table and save_table are disabled")
	}

	st := store.New(logger, store.Options{
		HistoryLimit:  cfg.Store.HistoryLimit,
		SnapshotLimit: cfg.Store.SnapshotLimit,
		MaxTables:     cfg.Store.MaxTables,
	})
	return ops.New(st, guard, logger, ops.Options{
		SampleRows:   cfg.Store.SampleRows,
		PreviewRows:  cfg.Store.PreviewRows,
		MaxDiffLines: cfg.Store.MaxDiffLines,
		MaxCells:     cfg.Store.MaxCellsPerOp,
		ReadOnly:     cfg.ReadOnly,
	}), nil
}
