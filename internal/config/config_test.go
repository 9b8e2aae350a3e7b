package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "sonnet", cfg.Run.Model)
	require.Equal(t, "bypassPermissions", cfg.Run.PermissionMode)
	require.Zero(t, cfg.Run.Timeout)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
	require.Equal(t, "localhost:4317", cfg.Tracing.OTLPEndpoint)
	require.Equal(t, 1.0, cfg.Tracing.SampleRate)

	require.NoError(t, Validate(cfg))
}

func TestValidateRun(t *testing.T) {
	tests := []struct {
		name    string
		run     RunConfig
		wantErr string
	}{
		{
			name: "empty config is valid",
			run:  RunConfig{},
		},
		{
			name: "full config is valid",
			run: RunConfig{
				CLIPath:         "/usr/local/bin/claude",
				Model:           "opus",
				PermissionMode:  "acceptEdits",
				AllowedTools:    []string{"Bash", "Edit"},
				DisallowedTools: []string{"WebSearch"},
				Timeout:         10 * time.Minute,
			},
		},
		{
			name:    "relative cli_path rejected",
			run:     RunConfig{CLIPath: "bin/claude"},
			wantErr: "cli_path must be an absolute path",
		},
		{
			name:    "negative timeout rejected",
			run:     RunConfig{Timeout: -time.Second},
			wantErr: "timeout must not be negative",
		},
		{
			name:    "empty allowed tool rejected",
			run:     RunConfig{AllowedTools: []string{"Bash", ""}},
			wantErr: "allowed_tools must not contain empty entries",
		},
		{
			name:    "empty disallowed tool rejected",
			run:     RunConfig{DisallowedTools: []string{""}},
			wantErr: "disallowed_tools must not contain empty entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRun(tt.run)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		tracing TracingConfig
		wantErr string
	}{
		{
			name:    "empty config is valid",
			tracing: TracingConfig{},
		},
		{
			name:    "disabled file exporter without path is valid",
			tracing: TracingConfig{Exporter: "file"},
		},
		{
			name:    "enabled file exporter requires path",
			tracing: TracingConfig{Enabled: true, Exporter: "file"},
			wantErr: "file_path is required",
		},
		{
			name:    "enabled otlp exporter requires endpoint",
			tracing: TracingConfig{Enabled: true, Exporter: "otlp"},
			wantErr: "otlp_endpoint is required",
		},
		{
			name:    "unknown exporter rejected",
			tracing: TracingConfig{Exporter: "jaeger"},
			wantErr: "tracing.exporter must be",
		},
		{
			name:    "sample rate above one rejected",
			tracing: TracingConfig{SampleRate: 1.5},
			wantErr: "sample_rate must be between",
		},
		{
			name:    "negative sample rate rejected",
			tracing: TracingConfig{SampleRate: -0.1},
			wantErr: "sample_rate must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.tracing)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Template must be valid YAML with the expected top-level sections.
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Contains(t, parsed, "run")
}
