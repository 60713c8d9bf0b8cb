// Package execmd runs external tuning tools as bounded, synchronous
// subprocesses. Every invocation carries a timeout; a spawn failure or
// timeout is reported through the result, never left hanging.
package execmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandTimeout is the default bound for tuning-tool invocations.
const CommandTimeout = 15 * time.Second

// tailLines is how many trailing output lines results retain for
// diagnostics.
const tailLines = 5

// Result captures one completed (or failed-to-spawn) command.
type Result struct {
	// Code is the process exit code. Spawn failures and timeouts
	// report 1 with Err set.
	Code int

	// Stdout and Stderr are the trimmed captured streams.
	Stdout string
	Stderr string

	// Err is non-nil when the command could not run to completion
	// (not found, timeout, signal). A non-zero exit alone does not
	// set Err; callers inspect Code for that.
	Err error
}

// Runner executes a command with a bounded timeout. The engine and every
// action accept a Runner so tests can substitute a fake that records
// invocations instead of touching the host.
type Runner func(ctx context.Context, timeout time.Duration, name string, args ...string) Result

// Run is the default Runner backed by exec.CommandContext.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) Result {
	if timeout <= 0 {
		timeout = CommandTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	switch {
	case err == nil:
		result.Code = 0
	case runCtx.Err() == context.DeadlineExceeded:
		result.Code = 1
		result.Err = fmt.Errorf("command %q timed out after %s", name, timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Code = exitErr.ExitCode()
		} else {
			result.Code = 1
			result.Err = fmt.Errorf("command %q failed to start: %w", name, err)
		}
	}
	return result
}

// Tail returns the last few non-empty lines of s for diagnostic excerpts.
func Tail(s string) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, tailLines)
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > tailLines {
		kept = kept[len(kept)-tailLines:]
	}
	return kept
}

// CommandString renders a command and its arguments the way the report
// presents shell-equivalent commands.
func CommandString(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
