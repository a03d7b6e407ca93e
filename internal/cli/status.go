package cli

import (
	"fmt"
	"time"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/history"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and the current memory state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "number of runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir())
	if err != nil {
		return err
	}

	journal, err := history.Open(cfg.History)
	if err != nil {
		return err
	}
	defer journal.Close()

	runs, err := journal.ListRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
	} else {
		fmt.Println("Recent runs:")
		for _, run := range runs {
			fmt.Printf("%s %s  %-10s %3d iterations",
				statusIcon(run.Status), run.ID[:8], run.Status, run.Iterations)
			if run.CompletedAt != nil {
				fmt.Printf("  %s", run.CompletedAt.Sub(run.StartedAt).Round(time.Second))
			}
			fmt.Println()
			if run.Error != "" {
				fmt.Printf("    error: %s\n", run.Error)
			}
		}
	}

	doc, err := memory.LoadDocument(cfg.Agent.Memory.PersistencePath)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Println("\nNo persistence file; the next run starts fresh.")
		return nil
	}

	fmt.Printf("\nPersisted state: %s at iteration %d\n", doc.State, doc.Iteration)
	fmt.Printf("  working memory: %d entries\n", len(doc.WorkingMemory))
	fmt.Printf("  storage:        %d entries\n", len(doc.Storage))

	if owner, held := lockHeldBy(cfg.Agent.Memory.PersistencePath); held {
		fmt.Printf("  lock held by pid %d\n", owner)
	}
	return nil
}

// lockHeldBy reports whether a run currently holds the persistence lock.
// A missing or unreadable lock file counts as free.
func lockHeldBy(persistencePath string) (int, bool) {
	pid, err := memory.LockOwner(persistencePath)
	if err != nil || pid == 0 {
		return 0, false
	}
	return pid, true
}

func statusIcon(status string) string {
	switch status {
	case history.StatusCompleted:
		return "✓"
	case history.StatusRunning:
		return "▶"
	default:
		return "✗"
	}
}
