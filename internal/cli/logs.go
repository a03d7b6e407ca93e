package cli

import (
	"fmt"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/history"
	"github.com/spf13/cobra"
)

var (
	logsRunID string
	logsLines int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the iteration journal for a run",
	Long: `Show the per-iteration journal: state, dispatched action, working-set
size and duration. Defaults to the most recent run.

Examples:
  mnemo logs                # Latest run
  mnemo logs --run 4fa2b1c8 # Specific run (ID prefix works)
  mnemo logs -n 100         # More iterations`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsRunID, "run", "", "run ID (prefix allowed)")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of iterations to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir())
	if err != nil {
		return err
	}

	journal, err := history.Open(cfg.History)
	if err != nil {
		return err
	}
	defer journal.Close()

	runID, err := resolveRunID(journal, logsRunID)
	if err != nil {
		return err
	}
	if runID == "" {
		fmt.Println("No runs recorded.")
		return nil
	}

	records, err := journal.ListIterations(runID, logsLines)
	if err != nil {
		return fmt.Errorf("failed to list iterations: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No iterations journaled for run %s.\n", runID[:8])
		return nil
	}

	fmt.Printf("Run %s:\n", runID[:8])
	for _, rec := range records {
		line := fmt.Sprintf("  %4d  %-10s", rec.Iteration, rec.State)
		if rec.Action != "" {
			line += fmt.Sprintf("  %-20s", rec.Action)
		} else {
			line += fmt.Sprintf("  %-20s", "-")
		}
		line += fmt.Sprintf("  %5d tok  %4dms", rec.WorkingTokens, rec.DurationMS)
		fmt.Println(line)
	}
	return nil
}

// resolveRunID expands an ID prefix to a full run ID, or picks the most
// recent run when no prefix was given.
func resolveRunID(journal history.Journal, prefix string) (string, error) {
	runs, err := journal.ListRuns(100)
	if err != nil {
		return "", fmt.Errorf("failed to list runs: %w", err)
	}
	if prefix == "" {
		if len(runs) == 0 {
			return "", nil
		}
		return runs[0].ID, nil
	}
	for _, run := range runs {
		if len(run.ID) >= len(prefix) && run.ID[:len(prefix)] == prefix {
			return run.ID, nil
		}
	}
	return "", fmt.Errorf("no run matches %q", prefix)
}
