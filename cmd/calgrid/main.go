package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"calgrid/internal/config"
	appLog "calgrid/internal/log"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "0.1.0-dev"
	commit  = "none"
)

const defaultConfigPath = "/etc/calgrid/config.yaml"

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	noColor    bool
}

func main() {
	var gf globalFlags

	rootCmd := &cobra.Command{
		Use:           "calgrid",
		Short:         "Calendar event layout engine and server",
		Long:          `calgrid lays out overlapping calendar events into side-by-side and nested boxes and serves the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if gf.logLevel != "" {
				appLog.SetLevel(appLog.ParseLevel(gf.logLevel))
			}
			if gf.noColor {
				color.NoColor = true //nolint:reassign // library global
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&gf.configPath, "config", defaultConfigPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().BoolVar(&gf.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(serveCmd(&gf))
	rootCmd.AddCommand(layoutCmd(&gf))
	rootCmd.AddCommand(icsCmd(&gf))
	rootCmd.AddCommand(snapshotCmd(&gf))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calgrid %s (commit: %s)\n", version, commit)
		},
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// applyLogConfig configures the logger from cfg unless --log-level was given.
func applyLogConfig(cfg *config.Config, gf *globalFlags) {
	appLog.SetFormat(appLog.Format(cfg.Log.Format))
	if gf.logLevel == "" {
		appLog.SetLevel(appLog.ParseLevel(cfg.Log.Level))
	}
}

// loadOptionalConfig loads the config file when it exists and falls back to
// defaults otherwise. Offline commands must not create files.
func loadOptionalConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		appLog.Debug("config file not found, using defaults", "config_path", path)
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
