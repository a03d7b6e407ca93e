package cli

import (
	"fmt"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Print the configuration after defaults and environment interpolation.",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir())
	if err != nil {
		return err
	}

	// The token never reaches stdout.
	cfg.LLM.Token = ""

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Print(string(out))
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("\n# from %s\n", viper.ConfigFileUsed())
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(configDir()); err != nil {
		return err
	}
	fmt.Println("Configuration is valid.")
	return nil
}
