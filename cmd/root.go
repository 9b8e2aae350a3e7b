// Package cmd implements the corral command-line interface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"corral/internal/config"
	"corral/internal/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version  = "dev"
	cfgFile  string
	debug    bool
	cfg      config.Config
	logClose func()
)

var rootCmd = &cobra.Command{
	Use:   "corral",
	Short: "Supervise headless claude agent runs",
	Long: `Corral launches the claude CLI as a headless child process, parses its
stream-json output into an ordered event stream, and reports lifecycle
state (session ID, exit code, diagnostics) for the run.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/corral/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"write debug logs to .corral/debug.log")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("run.model", defaults.Run.Model)
	viper.SetDefault("run.permission_mode", defaults.Run.PermissionMode)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .corral/config.yaml (current directory)
		// 2. ~/.config/corral/config.yaml (user config)
		if _, err := os.Stat(".corral/config.yaml"); err == nil {
			viper.SetConfigFile(".corral/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "corral"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .corral/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".corral/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func initLogging() {
	if !debug && os.Getenv("CORRAL_DEBUG") == "" {
		return
	}
	if err := os.MkdirAll(".corral", 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create .corral directory: %v\n", err)
		return
	}
	cleanup, err := log.Init(".corral/debug.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open debug log: %v\n", err)
		return
	}
	logClose = cleanup
	log.SetEnabled(true)
	log.Info(log.CatCLI, "Debug logging enabled", "version", version)
}

// configFilePath returns the config file in use, falling back to the
// project-local default when none was loaded.
func configFilePath() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	return ".corral/config.yaml"
}

// Execute runs the root command
func Execute() error {
	defer func() {
		if logClose != nil {
			logClose()
		}
	}()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
