// Package supervisor launches a headless agent CLI process and converts
// its stream-json stdout into an ordered event stream. It captures stderr
// for post-mortem diagnostics and exposes lifecycle state (terminal error,
// exit code, completion) through a Handle.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"corral/internal/log"
)

// ErrTimeout is returned when a supervised process exceeds its configured timeout.
var ErrTimeout = fmt.Errorf("agent process timed out")

// ErrNotFound is returned when the claude executable cannot be found.
var ErrNotFound = fmt.Errorf("claude executable not found - install with 'npm install -g @anthropic-ai/claude-code' or ensure 'claude' is in PATH")

// exitCodeUnknown is the exit code reported before the process has exited.
const exitCodeUnknown = -1

// Handle is the runtime state of one supervised process. A Handle is
// created by a single Launch call and never restarted; a new launch
// always produces a new Handle.
type Handle struct {
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc

	events     chan StreamEvent
	done       chan struct{}
	stderr     StderrCollector
	stderrDone chan struct{}

	mu        sync.Mutex
	termErr   error
	sessionID string
	exitCode  int
}

// findExecutable locates the claude executable.
// It checks in order: ~/.claude/local/claude, ~/.claude/claude, then exec.LookPath.
func findExecutable() (string, error) {
	// On Windows, executables need .exe extension
	execName := "claude"
	if os.PathSeparator == '\\' {
		execName = "claude.exe"
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		for _, dir := range []string{
			filepath.Join(homeDir, ".claude", "local"),
			filepath.Join(homeDir, ".claude"),
		} {
			candidate := filepath.Join(dir, execName)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				log.Debug(log.CatSupervisor, "Found claude at known path", "path", candidate)
				return candidate, nil
			}
		}
	}

	path, err := exec.LookPath(execName)
	if err == nil {
		log.Debug(log.CatSupervisor, "Found claude via PATH", "path", path)
		return path, nil
	}

	return "", ErrNotFound
}

// redactEnv formats env overrides for logging, hiding values whose keys
// look like credentials.
func redactEnv(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "token") || strings.Contains(lower, "key") || strings.Contains(lower, "secret") {
			v = "<redacted>"
		}
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, " ")
}

// Launch starts a new supervised agent process.
// Context is used for cancellation; cfg.Timeout additionally bounds the run.
func Launch(ctx context.Context, cfg LaunchConfig) (*Handle, error) {
	execPath := cfg.CLIPath
	if execPath == "" {
		var err error
		execPath, err = findExecutable()
		if err != nil {
			return nil, err
		}
	}

	var procCtx context.Context
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		procCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	} else {
		procCtx, cancel = context.WithCancel(ctx)
	}

	args := buildArgs(cfg)
	log.Debug(log.CatArgs, "Built argument vector",
		"count", len(args), "resume", cfg.SessionID != "",
		"args", strings.Join(args, " "))
	log.Debug(log.CatSupervisor, "Launching agent process",
		"exec", execPath, "workDir", cfg.WorkDir, "env", redactEnv(cfg.Env))

	// #nosec G204 -- args are built from LaunchConfig, not user input
	cmd := exec.CommandContext(procCtx, execPath, args...)
	cmd.Dir = cfg.WorkDir
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	return launch(procCtx, cancel, cmd)
}

// launch wires pipes, starts cmd, and spawns the two background loops.
// Startup failures are returned synchronously with no goroutines running.
func launch(ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd) (*Handle, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	h := &Handle{
		cmd:        cmd,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan StreamEvent, 100),
		done:       make(chan struct{}),
		stderrDone: make(chan struct{}),
		exitCode:   exitCodeUnknown,
	}

	if err := cmd.Start(); err != nil {
		cancel()
		log.Debug(log.CatSupervisor, "Failed to start agent process", "error", err)
		return nil, fmt.Errorf("failed to start agent process: %w", err)
	}

	// No interactive input is ever requested or accepted.
	_ = stdin.Close()

	log.Debug(log.CatSupervisor, "Agent process started", "pid", cmd.Process.Pid)

	go h.captureStderr(stderr)
	go h.parseAndWait(stdout)

	return h, nil
}

// Events returns the ordered event stream. The channel is closed after
// the last event, strictly before Done fires.
func (h *Handle) Events() <-chan StreamEvent {
	return h.events
}

// Done returns a channel that is closed exactly once, after the event
// channel has been closed and the process has been waited on. Terminal
// error, exit code and stderr are stable once Done fires.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the terminal error, or nil. The value is final once Done
// has fired; earlier reads return the latest committed value.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.termErr
}

// Stderr returns the captured diagnostic text. During active capture this
// is a prefix of the final text.
func (h *Handle) Stderr() string {
	return h.stderr.String()
}

// ExitCode returns the process exit code, or -1 while the process has not
// yet exited.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// SessionID returns the session identifier reported by the init event.
// Empty until that event has been parsed.
func (h *Handle) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID
}

// PID returns the child process ID, or 0 if it never started.
func (h *Handle) PID() int {
	if h.cmd != nil && h.cmd.Process != nil {
		return h.cmd.Process.Pid
	}
	return 0
}

// Kill forcibly terminates the underlying process. Calling it on an
// already-exited process is a no-op, not an error.
func (h *Handle) Kill() error {
	h.cancel()
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing agent process: %w", err)
	}
	return nil
}

// setErr records the terminal error. First writer wins; a parse error
// recorded before the wait error is never overwritten.
func (h *Handle) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.termErr == nil {
		h.termErr = err
	}
}

// parseAndWait decodes stdout into events, then waits for process exit.
// It closes the event channel and fires the completion signal, in that
// order, only after both decoding and waiting have finished.
func (h *Handle) parseAndWait(stdout io.ReadCloser) {
	parser := NewParser(stdout)

	lineCount := 0
parse:
	for {
		event, err := parser.Next()
		if err != nil {
			log.Debug(log.CatStream, "Parse failed", "error", err, "events", lineCount)
			h.setErr(err)
			break
		}
		if event == nil {
			break
		}
		lineCount++

		if event.IsInit() && event.SessionID != "" {
			h.mu.Lock()
			h.sessionID = event.SessionID
			h.mu.Unlock()
			log.Debug(log.CatStream, "Got session ID", "sessionID", event.SessionID)
		}

		select {
		case h.events <- *event:
		case <-h.ctx.Done():
			log.Debug(log.CatStream, "Context done, stopping parser")
			break parse
		}
	}

	// Drain any remaining stdout so the child cannot stall on a full pipe
	// between parse failure and exit.
	_, _ = io.Copy(io.Discard, stdout)

	// Wait must not run until the stderr loop has seen EOF: Wait closes
	// the parent's pipe read ends, which would drop buffered diagnostics
	// and allow a late write after Done fires.
	<-h.stderrDone

	waitErr := h.cmd.Wait()
	log.Debug(log.CatSupervisor, "Agent process exited", "error", waitErr, "events", lineCount)

	exitCode := exitCodeUnknown
	if h.cmd.ProcessState != nil {
		exitCode = h.cmd.ProcessState.ExitCode()
	}

	if errors.Is(h.ctx.Err(), context.DeadlineExceeded) {
		h.setErr(ErrTimeout)
	} else if waitErr != nil {
		if diag := h.stderr.String(); diag != "" {
			h.setErr(fmt.Errorf("agent process failed: %s (exit: %w)", strings.TrimSpace(diag), waitErr))
		} else {
			h.setErr(fmt.Errorf("agent process exited: %w", waitErr))
		}
	}

	h.mu.Lock()
	h.exitCode = exitCode
	h.mu.Unlock()

	close(h.events)
	close(h.done)
}

// captureStderr appends raw stderr bytes to the collector until the pipe
// closes, then signals parseAndWait that the buffer is final. Cancellation
// is re-checked between reads so the loop cannot outlive the logical
// deadline on a stuck pipe.
func (h *Handle) captureStderr(stderr io.ReadCloser) {
	defer close(h.stderrDone)
	buf := make([]byte, 4096)
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			_, _ = h.stderr.Write(buf[:n])
		}
		if err != nil {
			return
		}
		select {
		case <-h.ctx.Done():
			return
		default:
		}
	}
}
