package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fieldline/fieldline/pkg/harness"
)

type checkFunc func(context.Context, zerolog.Logger) (*harness.CheckResult, error)

var checks = map[string]checkFunc{
	"install-contract": harness.InstallContract,
	"archive-dry-run":  harness.ArchiveDryRun,
	"mapping-persist":  harness.MappingPersist,
}

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [install-contract|archive-dry-run|mapping-persist|all]",
		Short: "Run deterministic self-checks",
		Long: `Run deterministic self-checks against scratch directories.

The checks exercise the install event contract, the archive verifier's
idempotency, and the mapping resolver's stable-ID guarantees without
touching a database or the host's service manager.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			names := []string{args[0]}
			if args[0] == "all" {
				names = []string{"install-contract", "archive-dry-run", "mapping-persist"}
			}

			failed := 0
			for _, name := range names {
				check, ok := checks[name]
				if !ok {
					return fmt.Errorf("unknown check %q", name)
				}
				result, err := check(cmd.Context(), logger)
				if err != nil {
					return fmt.Errorf("check %s: %w", name, err)
				}
				printCheck(result)
				if !result.OK {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	return cmd
}

func printCheck(result *harness.CheckResult) {
	if jsonOutput {
		raw, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return
		}
		fmt.Println(string(raw))
		return
	}

	status := "PASS"
	if !result.OK {
		status = "FAIL"
	}
	fmt.Printf("%s %s\n", status, result.Name)
	for _, d := range result.Details {
		fmt.Printf("  %s\n", d)
	}
}
