package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/baiirun/viewlink/internal/app"
	"github.com/baiirun/viewlink/internal/config"
	"github.com/baiirun/viewlink/internal/telemetry"
)

var version = "dev"

var (
	flagJSON     bool
	flagConfig   string
	flagDB       string
	flagLogLevel string
)

// application is built by the root command's pre-run and closed in its
// post-run.
var application *app.App

var rootCmd = &cobra.Command{
	Use:   "viewlink",
	Short: "Todo, WBS, Kanban and Gantt views of the same tasks",
	Long: `viewlink keeps one task in several views at once: a todo item, a WBS node,
a kanban card and a gantt bar. Transfer a task to other views to link the
copies, and sync a changed copy to mirror its fields into the others.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, cmd.Flags())
		if err != nil {
			return err
		}
		slog.SetDefault(newLogger(cfg, os.Stderr))

		ctx := cmd.Context()
		if err := telemetry.Init(ctx, "viewlink", version); err != nil {
			slog.Warn("telemetry disabled", "error", err)
		}

		application, err = app.New(ctx, cfg, slog.Default())
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.Shutdown(cmd.Context())
		return closeApp()
	},
}

func closeApp() error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.viewlink/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (default ~/.viewlink/viewlink.db)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.Version = version
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	// PersistentPostRun is skipped when a command fails.
	_ = closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, w *os.File) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
