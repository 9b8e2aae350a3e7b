package supervisor

// buildArgs constructs the command line arguments for the agent CLI.
// Pure function of the config, no I/O.
func buildArgs(cfg LaunchConfig) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
	}

	isResume := cfg.SessionID != ""
	if isResume {
		args = append(args, "--resume", cfg.SessionID)
	}

	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}

	// System prompt and tool lists only apply to new sessions; a resumed
	// session already carries them.
	if !isResume {
		if cfg.SystemPrompt != "" {
			args = append(args, "--append-system-prompt", cfg.SystemPrompt)
		}
		for _, tool := range cfg.AllowedTools {
			args = append(args, "--allowed-tools", tool)
		}
		for _, tool := range cfg.DisallowedTools {
			args = append(args, "--disallowed-tools", tool)
		}
	}

	if cfg.JSONSchema != "" {
		args = append(args, "--json-schema", cfg.JSONSchema)
	}

	if cfg.MCPConfig != "" {
		args = append(args, "--mcp-config", cfg.MCPConfig)
	}

	// Stdin is closed right after start, so a mode that would prompt for
	// approval would hang tool execution. Always skip the prompts.
	args = append(args, "--dangerously-skip-permissions")

	// The -- ensures a prompt starting with a dash isn't parsed as a flag.
	if cfg.Prompt != "" {
		args = append(args, "--", cfg.Prompt)
	}

	return args
}
