package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mnemo-oss/mnemo/internal/agent"
	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	runTask          string
	runMaxIterations uint64
	runFresh         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent until it finishes or hits the iteration cap",
	Long: `Run the agent loop. If a persistence file exists, the run resumes
from its saved iteration and state; otherwise it starts from thinking.

The run stops when the agent writes the task_complete marker, the
iteration cap is reached, or the process receives an interrupt. State
is persisted after every iteration, so an interrupted run loses at
most the iteration in flight.

Examples:
  mnemo run                           # Run (or resume) with mnemo.yaml
  mnemo run --task "summarize x.txt"  # Seed the task before starting
  mnemo run --fresh                   # Discard the persistence file first
  mnemo run --max-iterations 5        # Override the configured cap`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runTask, "task", "t", "", "seed working memory with a task description")
	runCmd.Flags().Uint64Var(&runMaxIterations, "max-iterations", 0, "override the configured iteration cap")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "start from a clean state, ignoring any persistence file")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First interrupt cancels between iterations; a second one kills the
	// process the usual way.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupt received, stopping after the current iteration...")
		cancel()
		signal.Stop(sigCh)
	}()

	cfg, err := config.Load(configDir())
	if err != nil {
		return err
	}
	if runMaxIterations > 0 {
		cfg.Agent.Limits.MaxIterations = runMaxIterations
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := telemetry.NewLogger(level, cfg.Logging.Format)

	if runFresh {
		if err := os.Remove(cfg.Agent.Memory.PersistencePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove persistence file: %w", err)
		}
	}

	o, err := agent.New(cfg, logger)
	if err != nil {
		return err
	}

	if runTask != "" {
		if err := o.SeedTask(runTask); err != nil {
			return err
		}
	}

	runErr := o.Run(ctx)

	fmt.Println(o.Metrics().Summary())
	if errors.Is(runErr, context.Canceled) {
		// Interrupt honored; state is persisted, resume with 'mnemo run'.
		return nil
	}
	return runErr
}
