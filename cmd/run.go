package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"corral/internal/bridge"
	"corral/internal/config"
	"corral/internal/log"
	"corral/internal/supervisor"
	"corral/internal/tracing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var runFlags struct {
	resume          string
	model           string
	cliPath         string
	workDir         string
	systemPrompt    string
	allowedTools    []string
	disallowedTools []string
	mcpConfig       string
	schemaPath      string
	env             map[string]string
	timeout         time.Duration
	quiet           bool
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a prompt through a supervised claude process",
	Long: `Run launches claude in headless stream-json mode with the given prompt,
relays each stream event to stdout as it arrives, and exits with the
child's status. Use --resume to continue an existing session; a resumed
session may omit the prompt to let the agent continue from its state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.resume, "resume", "r", "",
		"resume an existing session by ID")
	runCmd.Flags().StringVarP(&runFlags.model, "model", "m", "",
		"model alias or full identifier")
	runCmd.Flags().StringVar(&runFlags.cliPath, "cli-path", "",
		"explicit path to the claude executable")
	runCmd.Flags().StringVarP(&runFlags.workDir, "work-dir", "C", "",
		"working directory for the child process")
	runCmd.Flags().StringVar(&runFlags.systemPrompt, "system-prompt", "",
		"text appended to the agent system prompt (new sessions only)")
	runCmd.Flags().StringSliceVar(&runFlags.allowedTools, "allowed-tools", nil,
		"tools the agent may use (new sessions only)")
	runCmd.Flags().StringSliceVar(&runFlags.disallowedTools, "disallowed-tools", nil,
		"tools the agent may not use (new sessions only)")
	runCmd.Flags().StringVar(&runFlags.mcpConfig, "mcp-config", "",
		"MCP server configuration file")
	runCmd.Flags().StringVar(&runFlags.schemaPath, "schema", "",
		"JSON schema file constraining the final result")
	runCmd.Flags().StringToStringVar(&runFlags.env, "env", nil,
		"extra environment variables (KEY=VALUE, repeatable)")
	runCmd.Flags().DurationVar(&runFlags.timeout, "timeout", 0,
		"wall-clock bound for the run (0 means none)")
	runCmd.Flags().BoolVarP(&runFlags.quiet, "quiet", "q", false,
		"suppress event output, report only the final status")
}

// launchConfig merges file-based run defaults with command-line flags.
// A flag that was explicitly set always wins.
func launchConfig(cmd *cobra.Command, prompt string) supervisor.LaunchConfig {
	run := cfg.Run

	if cmd.Flags().Changed("model") {
		run.Model = runFlags.model
	}
	if cmd.Flags().Changed("cli-path") {
		run.CLIPath = runFlags.cliPath
	}
	if cmd.Flags().Changed("work-dir") {
		run.WorkDir = runFlags.workDir
	}
	if cmd.Flags().Changed("system-prompt") {
		run.SystemPrompt = runFlags.systemPrompt
	}
	if cmd.Flags().Changed("allowed-tools") {
		run.AllowedTools = runFlags.allowedTools
	}
	if cmd.Flags().Changed("disallowed-tools") {
		run.DisallowedTools = runFlags.disallowedTools
	}
	if cmd.Flags().Changed("mcp-config") {
		run.MCPConfig = runFlags.mcpConfig
	}
	if cmd.Flags().Changed("schema") {
		run.SchemaPath = runFlags.schemaPath
	}
	if cmd.Flags().Changed("timeout") {
		run.Timeout = runFlags.timeout
	}
	if len(runFlags.env) > 0 {
		if run.Env == nil {
			run.Env = make(map[string]string, len(runFlags.env))
		}
		for k, v := range runFlags.env {
			run.Env[k] = v
		}
	}

	return supervisor.LaunchConfig{
		CLIPath:         run.CLIPath,
		WorkDir:         run.WorkDir,
		SessionID:       runFlags.resume,
		Model:           run.Model,
		SystemPrompt:    run.SystemPrompt,
		AllowedTools:    run.AllowedTools,
		DisallowedTools: run.DisallowedTools,
		JSONSchema:      run.SchemaPath,
		MCPConfig:       run.MCPConfig,
		PermissionMode:  supervisor.PermissionMode(run.PermissionMode),
		Prompt:          prompt,
		Env:             run.Env,
		Timeout:         run.Timeout,
	}
}

// tracingConfig maps file-based tracing settings onto the provider config.
func tracingConfig() tracing.Config {
	tc := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	}
	if tc.Enabled && tc.Exporter == "file" && tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesFilePath()
	}
	return tc
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt := ""
	if len(args) > 0 {
		prompt = args[0]
	}
	if prompt == "" && runFlags.resume == "" {
		return fmt.Errorf("a prompt is required unless --resume is given")
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration (%s): %w", configFilePath(), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(tracingConfig())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	runID := uuid.NewString()
	lc := launchConfig(cmd, prompt)

	ctx, span := provider.Tracer().Start(ctx, tracing.SpanRun,
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, runID),
			attribute.String(tracing.AttrModel, lc.Model),
			attribute.Bool(tracing.AttrResumed, lc.SessionID != ""),
			attribute.String(tracing.AttrWorkDir, lc.WorkDir),
		))
	defer span.End()

	traceID := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		traceID = tracing.NewTraceID()
	}
	ctx = tracing.ContextWithTraceID(ctx, traceID)

	log.Info(log.CatCLI, "Starting run",
		"runID", runID, "traceID", traceID, "resume", lc.SessionID, "model", lc.Model)

	h, err := supervisor.Launch(ctx, lc)
	if err != nil {
		tracing.RecordOutcome(span, err)
		return err
	}
	span.AddEvent(tracing.EventProcessStarted,
		trace.WithAttributes(attribute.Int(tracing.AttrProcessPID, h.PID())))

	br := bridge.New()
	defer br.Close()

	// Print from the drain loop itself: the stream is the command's
	// primary output and must be lossless and ordered. The bridge only
	// carries copies for auxiliary observers.
	count := 0
	for event := range h.Events() {
		switch {
		case event.IsInit():
			span.AddEvent(tracing.EventInitReceived,
				trace.WithAttributes(attribute.String(tracing.AttrSessionID, event.SessionID)))
		case event.IsResult():
			span.AddEvent(tracing.EventResultReceived)
		}
		if !runFlags.quiet {
			fmt.Fprintln(cmd.OutOrStdout(), string(event.Raw))
		}
		br.Publish(event)
		count++
	}
	<-h.Done()

	span.SetAttributes(
		attribute.String(tracing.AttrSessionID, h.SessionID()),
		attribute.Int(tracing.AttrProcessExitCode, h.ExitCode()),
		attribute.Int(tracing.AttrEventCount, count),
	)
	span.AddEvent(tracing.EventProcessExited,
		trace.WithAttributes(attribute.Int(tracing.AttrProcessExitCode, h.ExitCode())))

	runErr := h.Err()
	tracing.RecordOutcome(span, runErr)

	if runErr != nil {
		if diag := strings.TrimSpace(h.Stderr()); diag != "" && !strings.Contains(runErr.Error(), diag) {
			fmt.Fprintln(cmd.ErrOrStderr(), diag)
		}
		log.ErrorErr(log.CatCLI, "Run failed", runErr,
			"runID", runID, "exitCode", h.ExitCode(), "events", count)
		return runErr
	}

	log.Info(log.CatCLI, "Run complete",
		"runID", runID, "sessionID", h.SessionID(), "events", count)
	return nil
}
