package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/mama/internal/config"
	"github.com/HendryAvila/mama/internal/logging"
	"github.com/HendryAvila/mama/internal/server"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "mama",
		Short:         "Decision memory MCP server",
		Long:          "MAMA records decisions and their reasoning as a graph and feeds that memory back into tool calls.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $"+config.HomeEnv+" or ~/.mama)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(flags),
		newHealthCmd(flags),
		newSyncModulesCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *server.App, log *zap.Logger) error {
				// Graceful shutdown on interrupt.
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				s, cleanup, err := server.New(ctx, app)
				if err != nil {
					return fmt.Errorf("creating server: %w", err)
				}
				defer cleanup()

				log.Info("serving", zap.String("version", server.Version), zap.String("data_dir", app.Config.DataDir))
				stdio := mcpserver.NewStdioServer(s)
				if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
}

func newHealthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print decision graph health as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *server.App, log *zap.Logger) error {
				h, err := app.Graph.Health()
				if err != nil {
					return fmt.Errorf("computing graph health: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), h)
			})
		},
	}
}

func newSyncModulesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-modules [dir]",
		Short: "Load module manifests into the module library",
		Long:  "Reads *.yaml and *.yml manifests from dir (default: the configured modules_dir) and embeds new or changed modules.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(app *server.App, log *zap.Logger) error {
				dir := app.Config.ModulesDir
				if len(args) == 1 {
					dir = args[0]
				}
				if dir == "" {
					return errors.New("no directory given and no modules_dir configured")
				}
				report, err := app.Recommend.SyncDir(cmd.Context(), dir)
				if err != nil {
					return fmt.Errorf("syncing %s: %w", dir, err)
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mama v%s\n", server.Version)
		},
	}
}

// withApp loads config, builds the logger and components, runs fn and
// closes everything afterwards.
func withApp(flags *globalFlags, fn func(*server.App, *zap.Logger) error) error {
	dataDir := flags.dataDir
	if dataDir == "" {
		dir, err := config.DefaultDataDir()
		if err != nil {
			return err
		}
		dataDir = dir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	cfg, err := config.NewFileStore().Load(dataDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	log, err := logging.New(level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := server.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}()

	return fn(app, log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
