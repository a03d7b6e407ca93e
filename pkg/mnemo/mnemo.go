// Package mnemo provides a public API for embedding the agent runtime.
//
// Example usage:
//
//	import "github.com/mnemo-oss/mnemo/pkg/mnemo"
//
//	result, err := mnemo.Run(context.Background(), "summarize the design doc")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Iterations, result.State)
package mnemo

import (
	"context"

	"github.com/mnemo-oss/mnemo/internal/agent"
	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// Result summarizes a finished run.
type Result struct {
	Iterations uint64
	State      string
	Working    []Entry
	Storage    []Entry
}

// Entry is one memory entry: a canonical tag key, a value, and the
// iteration that last wrote it.
type Entry struct {
	Tags      string
	Value     string
	Iteration uint64
}

// Run loads mnemo.yaml from the current directory, seeds the task into
// working memory and runs the agent to completion.
func Run(ctx context.Context, task string) (*Result, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	return RunWithConfig(ctx, cfg, task)
}

// RunWithConfig runs the agent with an explicit configuration. An empty
// task resumes whatever the persistence file holds.
func RunWithConfig(ctx context.Context, cfg *config.Config, task string) (*Result, error) {
	logger := telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	o, err := agent.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if task != "" {
		if err := o.SeedTask(task); err != nil {
			return nil, err
		}
	}

	runErr := o.Run(ctx)

	result := &Result{
		Iterations: o.Memory().Iteration(),
		State:      string(o.State()),
	}
	for _, e := range o.Memory().WorkingEntries() {
		result.Working = append(result.Working, entryOf(e))
	}
	for _, e := range o.Memory().PersistentEntries() {
		result.Storage = append(result.Storage, entryOf(e))
	}
	return result, runErr
}

func entryOf(e memory.Entry) Entry {
	return Entry{Tags: e.Key(), Value: e.Value, Iteration: e.Iteration}
}
