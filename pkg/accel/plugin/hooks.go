package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// HookTimeout bounds each shell hook invocation.
const HookTimeout = 20 * time.Second

// SelectedIDsEnvVar carries the comma-separated selected action ids to
// shell hooks.
const SelectedIDsEnvVar = "ACCELERATE_SELECTED_IDS"

// RunShellHooks executes the given hook scripts in order via sh. Each
// script gets the selected action ids in the environment and a bounded
// timeout. Failures are reported as warnings; one failing hook never
// prevents the next from running.
func RunShellHooks(ctx context.Context, scripts []string, selectedIDs []string) []string {
	warnings := []string{}
	for _, script := range scripts {
		if warning := runShellHook(ctx, script, selectedIDs); warning != "" {
			warnings = append(warnings, warning)
		}
	}
	return warnings
}

func runShellHook(parent context.Context, script string, selectedIDs []string) string {
	ctx, cancel := context.WithTimeout(parent, HookTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", script)
	cmd.Env = append(os.Environ(), SelectedIDsEnvVar+"="+strings.Join(selectedIDs, ","))

	output, err := cmd.CombinedOutput()
	name := filepath.Base(script)
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return fmt.Sprintf("Hook script %s timed out after %s", name, HookTimeout)
	case err != nil:
		return fmt.Sprintf("Hook script %s failed: %v: %s", name, err, strings.TrimSpace(string(output)))
	}
	return ""
}

// RunNativeHooks invokes the given native hooks in order. A hook error or
// panic becomes a warning and never stops the remaining hooks.
func RunNativeHooks(hooks []HookFunc, ctx, plan map[string]any, selectedIDs []string) []string {
	warnings := []string{}
	for i, hook := range hooks {
		if warning := runNativeHook(i, hook, ctx, plan, selectedIDs); warning != "" {
			warnings = append(warnings, warning)
		}
	}
	return warnings
}

func runNativeHook(index int, hook HookFunc, ctx, plan map[string]any, selectedIDs []string) (warning string) {
	defer func() {
		if r := recover(); r != nil {
			warning = fmt.Sprintf("Hook %d panicked: %v", index, r)
		}
	}()

	if err := hook(ctx, plan, selectedIDs); err != nil {
		return fmt.Sprintf("Hook %d failed: %v", index, err)
	}
	return ""
}

// ToMap serializes v into the generic map shape hooks receive.
func ToMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
