package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		limit  int
		offset int
		events string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded install runs",
		Long: `List install runs from the local history store, newest first.

With --events, print the full event stream of one run instead.`,
		Example: `  # List the last 20 runs
  fieldline runs

  # Show one run's event stream
  fieldline runs --events 2f1c9a60-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			store, err := openHistory(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if events != "" {
				evs, err := store.ListEvents(cmd.Context(), events)
				if err != nil {
					return err
				}
				if jsonOutput {
					raw, err := json.MarshalIndent(evs, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(raw))
					return nil
				}
				for _, ev := range evs {
					fmt.Printf("%s [%3d%%] %-16s %s\n",
						ev.Timestamp.Format("15:04:05"), ev.Percent, ev.Kind, ev.Message)
				}
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				raw, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}
			for _, run := range runs {
				finished := "-"
				if run.FinishedAt != nil {
					finished = run.FinishedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-36s %-10s %-20s %s\n",
					run.CorrelationID, run.Status, finished, run.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")
	cmd.Flags().StringVar(&events, "events", "", "print the event stream of the given run")

	return cmd
}
