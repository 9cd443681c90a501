package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fieldline/fieldline/pkg/config"
	"github.com/fieldline/fieldline/pkg/installer"
	"github.com/fieldline/fieldline/pkg/stores"
	"github.com/fieldline/fieldline/pkg/telemetry"
)

func newInstallCommand() *cobra.Command {
	var (
		requestFile string
		noHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Run an install from a request file",
		Long: `Run a full install described by a request file.

This command:
  - Loads and validates the install request
  - Starts the single-flight install run
  - Streams progress events to the terminal
  - Cancels the run cleanly on interrupt
  - Records the run in the local history store`,
		Example: `  # Install from a request file
  fieldline install --request request.yaml

  # Stream events as JSON lines
  fieldline install --request request.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			req, err := config.LoadRequest(requestFile)
			if err != nil {
				return err
			}

			// Installs can run for a long time; edits to the config
			// file adjust the log level of the running process. The
			// --verbose flag pins debug and wins over the file.
			if configPath != "" {
				watcher, err := config.NewWatcher(configPath, logger)
				if err != nil {
					return err
				}
				onReload := func(next *config.Config) {
					if !verbose {
						telemetry.SetLogLevel(next.Telemetry.Logging.Level)
					}
				}
				if err := watcher.Watch(cmd.Context(), onReload); err != nil {
					logger.Warn().Err(err).Msg("configuration watch unavailable")
				} else {
					defer func() { _ = watcher.Stop() }()
				}
			}

			return runInstall(cmd.Context(), cfg, logger, req, !noHistory)
		},
	}

	cmd.Flags().StringVarP(&requestFile, "request", "r", "", "install request file")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip recording the run in the history store")
	_ = cmd.MarkFlagRequired("request")

	return cmd
}

func runInstall(ctx context.Context, cfg *config.Config, logger zerolog.Logger, req *installer.InstallRequest, history bool) error {
	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return err
	}
	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Telemetry.Environment)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	opts := []installer.OrchestratorOption{
		installer.WithMetrics(metrics),
		installer.WithTracer(tracer),
	}

	if history {
		store, err := openHistory(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("history store unavailable, run will not be recorded")
		} else {
			defer store.Close()
			opts = append(opts, installer.WithRunRecorder(stores.NewRecorder(store)))
		}
	}

	o := installer.NewOrchestrator(logger, opts...)
	defer o.Close()

	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	id, err := o.StartInstall(ctx, req)
	if err != nil {
		return err
	}
	logger.Info().Str("correlation_id", id).Msg("install accepted")

	// Interrupt turns into a cooperative cancel; the run still ends with
	// its own terminal event.
	go func() {
		<-ctx.Done()
		o.CancelInstall()
	}()

	for ev := range events {
		printEvent(ev)
		if ev.Kind.IsTerminal() {
			break
		}
	}

	o.Wait()
	result := o.LastResult()
	if result == nil {
		return fmt.Errorf("run %s produced no result", id)
	}
	if !result.OK {
		return fmt.Errorf("install failed (%s): %s", result.ErrorKind, result.Message)
	}

	if !jsonOutput {
		fmt.Printf("Install complete.\n")
		fmt.Printf("  Artifacts: %s\n", result.Details.ArtifactsDir)
		fmt.Printf("  Manifest:  %s\n", result.Details.ManifestPath)
		fmt.Printf("  Config:    %s\n", result.Details.ConfigPath)
	}
	return nil
}

// openHistory opens the run history store and applies retention.
func openHistory(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
		return nil, err
	}
	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.History.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	if cfg.History.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
		if pruned, err := store.PruneRuns(ctx, cutoff); err != nil {
			logger.Warn().Err(err).Msg("pruning run history failed")
		} else if pruned > 0 {
			logger.Debug().Int64("pruned", pruned).Msg("old runs pruned from history")
		}
	}
	return store, nil
}

// printEvent renders one event for the terminal.
func printEvent(ev installer.ProgressEvent) {
	if jsonOutput {
		raw, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Println(string(raw))
		return
	}

	switch ev.Kind {
	case installer.EventComplete:
		fmt.Printf("[100%%] %s\n", ev.Message)
	case installer.EventError:
		fmt.Printf("[error] %s\n", ev.Message)
	default:
		fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Message)
	}
}
