package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fieldline/fieldline/pkg/config"
	"github.com/fieldline/fieldline/pkg/installer"
	"github.com/fieldline/fieldline/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	installer.Version = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldline",
		Short: "Fieldline - database-backed application installer",
		Long: `Fieldline installs a database-backed application onto the local host.

An install runs as a single-flight sequence of steps: preflight checks,
database provisioning, schema mapping, storage and archive verification,
service or container activation, and finalization. Progress is streamed
as events and every run is recorded in a local history store.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newVerifyArchiveCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newCheckCommand())

	return rootCmd
}

// loadConfig loads the configured file or falls back to defaults.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// newLogger builds the process logger from configuration plus the
// --verbose override.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	logCfg := cfg.Telemetry.Logging
	if verbose {
		logCfg.Level = "debug"
	}
	return telemetry.NewLogger(logCfg)
}
