package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a mnemo project",
	Long: `Create a mnemo.yaml scaffold and the .mnemo data directory.

The scaffold carries every setting with its default value and a role
section to fill in. Existing files are left alone unless --force is
given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing mnemo.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	cfgPath := filepath.Join(dir, "mnemo.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}
	if err := os.WriteFile(cfgPath, []byte(config.DefaultYAML), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}

	if err := os.MkdirAll(filepath.Join(dir, ".mnemo"), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := writeGitignore(dir); err != nil {
		return err
	}

	fmt.Printf("Initialized mnemo project in %s\n", dir)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Fill in agent.role in mnemo.yaml")
	fmt.Println("  2. Point llm.endpoint at your model server")
	fmt.Println("  3. Run 'mnemo run --task \"...\"' to start")
	return nil
}

func writeGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	content := ".mnemo/\n*.log\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return nil
}
