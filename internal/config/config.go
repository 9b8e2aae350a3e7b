// Package config provides configuration types and defaults for corral.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"corral/internal/log"
)

// Config holds all configuration options for corral.
type Config struct {
	Run     RunConfig       `mapstructure:"run"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// RunConfig holds defaults applied to every supervised run. Command-line
// flags override these per invocation.
type RunConfig struct {
	// CLIPath is an explicit path to the claude executable.
	// Empty means discover via well-known locations and $PATH.
	CLIPath string `mapstructure:"cli_path"`

	// Model selects the model alias or full identifier.
	Model string `mapstructure:"model"` // sonnet (default), opus, haiku

	// PermissionMode is the requested tool permission mode.
	// Valid values: "bypassPermissions", "acceptEdits", "default",
	// or any custom mode string.
	PermissionMode string `mapstructure:"permission_mode"`

	// SystemPrompt is appended to the agent's system prompt on new sessions.
	SystemPrompt string `mapstructure:"system_prompt"`

	// AllowedTools and DisallowedTools are emitted as repeated flags on
	// new sessions.
	AllowedTools    []string `mapstructure:"allowed_tools"`
	DisallowedTools []string `mapstructure:"disallowed_tools"`

	// WorkDir is the working directory for the child process.
	// Default: current directory.
	WorkDir string `mapstructure:"work_dir"`

	// Env holds extra environment variables merged over the inherited
	// environment.
	Env map[string]string `mapstructure:"env"`

	// Timeout bounds a run's wall-clock duration. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// MCPConfig is a path to an MCP server configuration file.
	MCPConfig string `mapstructure:"mcp_config"`

	// SchemaPath is a path to a JSON schema constraining the final result.
	SchemaPath string `mapstructure:"schema_path"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/corral/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// 1.0 = all traces, 0.1 = 10% of traces
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/corral/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "corral", "traces", "traces.jsonl")
}

// ValidateRun checks run configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateRun(run RunConfig) error {
	if run.CLIPath != "" && !filepath.IsAbs(run.CLIPath) {
		return fmt.Errorf("run.cli_path must be an absolute path, got %q", run.CLIPath)
	}

	if run.Timeout < 0 {
		return fmt.Errorf("run.timeout must not be negative, got %v", run.Timeout)
	}

	for _, tool := range run.AllowedTools {
		if tool == "" {
			return fmt.Errorf("run.allowed_tools must not contain empty entries")
		}
	}
	for _, tool := range run.DisallowedTools {
		if tool == "" {
			return fmt.Errorf("run.disallowed_tools must not contain empty entries")
		}
	}

	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	// Validate SampleRate is in range [0.0, 1.0]
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	// Validate Exporter is a valid option
	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}

		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Validate checks the full configuration for errors.
func Validate(cfg Config) error {
	if err := ValidateRun(cfg.Run); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Run: RunConfig{
			Model:          "sonnet",
			PermissionMode: "bypassPermissions",
			Timeout:        0,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Corral Configuration

# Defaults for supervised runs. Command-line flags override these.
run:
  # Explicit path to the claude executable. When unset, corral checks
  # ~/.claude/local/claude and ~/.claude/claude, then $PATH.
  # cli_path: /usr/local/bin/claude

  # Model alias or full identifier
  model: sonnet  # sonnet (default), opus, haiku

  # Requested tool permission mode. Recorded for diagnosis; headless runs
  # always skip interactive permission prompts because stdin is closed.
  # permission_mode: bypassPermissions

  # Appended to the agent system prompt on new sessions
  # system_prompt: "Prefer small, focused diffs."

  # Tool allow/deny lists, applied to new sessions
  # allowed_tools:
  #   - Bash
  #   - Edit
  # disallowed_tools:
  #   - WebSearch

  # Working directory for the child process (default: current directory)
  # work_dir: /path/to/project

  # Extra environment variables merged over the inherited environment
  # env:
  #   CLAUDE_CODE_ENTRYPOINT: corral

  # Wall-clock bound for a run; exceeding it kills the process
  # timeout: 10m

  # MCP server configuration file
  # mcp_config: /path/to/mcp.json

  # JSON schema constraining the final result
  # schema_path: /path/to/schema.json

# Distributed tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/corral/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	// Create parent directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write the template
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
