package cli

import (
	"fmt"
	"strings"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/spf13/cobra"
)

var (
	memoryLayer string
	memoryTag   string
	memoryFull  bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect the persisted memory state",
	Long: `Print the entries in the persistence file, working memory first.

Examples:
  mnemo memory                  # Everything, values truncated
  mnemo memory --layer storage  # Storage only
  mnemo memory --tag domain_math # Entries carrying a tag
  mnemo memory --full           # Untruncated values`,
	RunE: runMemory,
}

func init() {
	memoryCmd.Flags().StringVar(&memoryLayer, "layer", "", "restrict to one layer: working or storage")
	memoryCmd.Flags().StringVar(&memoryTag, "tag", "", "only entries carrying this tag")
	memoryCmd.Flags().BoolVar(&memoryFull, "full", false, "print full values")
}

func runMemory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir())
	if err != nil {
		return err
	}

	doc, err := memory.LoadDocument(cfg.Agent.Memory.PersistencePath)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Println("No persistence file.")
		return nil
	}

	fmt.Printf("State: %s  iteration: %d\n", doc.State, doc.Iteration)

	if memoryLayer == "" || memoryLayer == "working" {
		printLayer("working memory", doc.WorkingMemory)
	}
	if memoryLayer == "" || memoryLayer == "storage" {
		printLayer("storage", doc.Storage)
	}
	return nil
}

func printLayer(name string, entries []memory.PersistedEntry) {
	fmt.Printf("\n%s (%d entries):\n", name, len(entries))
	for _, e := range entries {
		if memoryTag != "" && !hasTag(e.Tags, memoryTag) {
			continue
		}
		value := e.Value
		if !memoryFull {
			value = truncateValue(value, 80)
		}
		fmt.Printf("  [%s] @%d\n    %s\n", e.Tags, e.Iteration, value)
	}
}

func hasTag(key, tag string) bool {
	for _, t := range strings.Split(key, ",") {
		if t == tag {
			return true
		}
	}
	return false
}

func truncateValue(v string, limit int) string {
	v = strings.ReplaceAll(v, "\n", " ")
	if len(v) <= limit {
		return v
	}
	return v[:limit] + "..."
}
