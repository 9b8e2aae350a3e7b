package cmd

import (
	"fmt"

	"corral/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update run defaults",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), configFilePath())
		return nil
	},
}

var configSetModelCmd = &cobra.Command{
	Use:   "set-model <model>",
	Short: "Set the default model for runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFilePath()
		if err := config.SetModel(path, cfg.Run, args[0]); err != nil {
			return fmt.Errorf("setting model: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "model set to %s in %s\n", args[0], path)
		return nil
	},
}

var configAllowToolCmd = &cobra.Command{
	Use:   "allow-tool <tool>",
	Short: "Add a tool to the default allow list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFilePath()
		if err := config.AddAllowedTool(path, cfg.Run, args[0]); err != nil {
			return fmt.Errorf("allowing tool: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tool %s allowed in %s\n", args[0], path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetModelCmd)
	configCmd.AddCommand(configAllowToolCmd)
}
