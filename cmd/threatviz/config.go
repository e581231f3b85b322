package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/threatviz/cmd/threatviz/internal"
	"github.com/zero-day-ai/threatviz/internal/config"
	"github.com/zero-day-ai/threatviz/internal/llm"
	"gopkg.in/yaml.v3"
)

const maskedSecret = "********"

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage threatviz configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the built-in defaults to the config path so they can be edited.
API keys are never written; they are read from the environment at run time.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := current.configPath
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return internal.NewCLIError(internal.ExitConfigError,
			fmt.Sprintf("config file %s already exists (use --force to overwrite)", path))
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return internal.WrapError(internal.ExitConfigError, "failed to check config file", err)
	}

	if err := config.Write(path, config.DefaultConfigFor(current.homeDir)); err != nil {
		return err
	}
	return internal.NewPrinter(current.flags.GetOutputFormat(), cmd.OutOrStdout()).
		Success(fmt.Sprintf("Wrote default configuration to %s", path))
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	masked := maskSecrets(current.cfg)

	data, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if current.flags.GetOutputFormat() == internal.FormatJSON {
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return internal.NewPrinter(internal.FormatJSON, cmd.OutOrStdout()).Value(tree)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(current.configPath); errors.Is(err, os.ErrNotExist) {
		return internal.NewCLIError(internal.ExitConfigError,
			fmt.Sprintf("config file %s not found (run 'threatviz config init')", current.configPath))
	}
	// setup already loaded and validated the file.
	return internal.NewPrinter(current.flags.GetOutputFormat(), cmd.OutOrStdout()).
		Success(fmt.Sprintf("%s is valid", current.configPath))
}

// maskSecrets returns a copy of cfg with inline API keys replaced.
func maskSecrets(cfg *config.Config) config.Config {
	out := *cfg
	if len(cfg.LLM.Providers) > 0 {
		out.LLM.Providers = make(map[string]llm.ProviderConfig, len(cfg.LLM.Providers))
		for name, pc := range cfg.LLM.Providers {
			if pc.APIKey != "" {
				pc.APIKey = maskedSecret
			}
			out.LLM.Providers[name] = pc
		}
	}
	if out.Knowledge.Embedder.APIKey != "" {
		out.Knowledge.Embedder.APIKey = maskedSecret
	}
	return out
}
