package supervisor

import "time"

// PermissionMode is the requested tool permission mode for a run.
// Because stdin is closed immediately after start, interactive approval is
// structurally impossible; the builder always emits the skip-permissions
// flag and the requested mode is kept only for diagnosis.
type PermissionMode string

const (
	PermissionBypass      PermissionMode = "bypassPermissions"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionDefault     PermissionMode = "default"
)

// LaunchConfig holds configuration for launching a supervised process.
// It is treated as immutable once passed to Launch.
type LaunchConfig struct {
	// CLIPath is the executable to invoke. Empty means discover the
	// well-known install locations, then $PATH.
	CLIPath string

	// WorkDir is the working directory for the child process.
	WorkDir string

	// SessionID non-empty resumes an existing conversation; empty starts
	// a new one.
	SessionID string

	// Model is forwarded whenever non-empty, on both new and resumed
	// sessions (resuming may still need to override a stored choice).
	Model string

	// SystemPrompt, AllowedTools and DisallowedTools only apply to new
	// sessions; a resumed session already carries this configuration.
	SystemPrompt    string
	AllowedTools    []string
	DisallowedTools []string

	// JSONSchema is an optional structured-output schema path.
	JSONSchema string

	// MCPConfig is an optional explicit MCP config file path.
	MCPConfig string

	// PermissionMode is the requested permission mode.
	PermissionMode PermissionMode

	// Prompt is the task text, passed as the final positional argument.
	Prompt string

	// Env holds extra environment variables merged over the inherited
	// process environment.
	Env map[string]string

	// Timeout bounds the run's wall-clock duration. Zero means none.
	Timeout time.Duration
}
