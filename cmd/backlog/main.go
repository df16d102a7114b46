// Backlog: persistent multi-client task tracking over MCP.
//
// Any number of MCP clients (AI coding assistants, IDE agents, scripts)
// share one JSON tasks file. Each client selects an active issue and
// manages that issue's tasks.
//
// Usage:
//
//	backlog serve              # Start the MCP server (SSE on 0.0.0.0:8050)
//	backlog serve --transport stdio
//	backlog export --format yaml
//	backlog version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/backlog/internal/config"
	"github.com/HendryAvila/backlog/internal/logging"
	backlogserver "github.com/HendryAvila/backlog/internal/server"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "backlog",
	Short:        "Persistent multi-client task tracking over MCP",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a backlog.toml config file")
	rootCmd.PersistentFlags().String("tasks-file", "", "path to the JSON tasks file (default tasks.json)")

	serveCmd.Flags().String("transport", "", "transport: sse, stdio or http (default sse)")
	serveCmd.Flags().String("host", "", "listen host for sse/http (default 0.0.0.0)")
	serveCmd.Flags().Int("port", 0, "listen port for sse/http (default 8050)")
	serveCmd.Flags().String("session-db", "", "SQLite file that persists each session's active issue")
	serveCmd.Flags().String("log-level", "", "log level: debug, info, warn, error")

	exportCmd.Flags().StringP("format", "f", "json", "output format: json or yaml")
}

// loadConfig resolves configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("tasks-file") {
		cfg.TasksFile, _ = flags.GetString("tasks-file")
	}
	if flags.Changed("transport") {
		cfg.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("session-db") {
		cfg.SessionDB, _ = flags.GetString("session-db")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if err := cfg.Resolve(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Logs go to stderr; stdout belongs to the stdio transport.
		logger := logging.New(cfg.LogLevel, os.Stderr)

		s, cleanup, err := backlogserver.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}
		defer cleanup()

		// Graceful shutdown on interrupt.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("starting backlog", "version", backlogserver.Version, "transport", cfg.Transport)
		return backlogserver.Serve(ctx, cfg, s, logger)
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "backlog v%s\n", backlogserver.Version)
	},
}
