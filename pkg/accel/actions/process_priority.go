package actions

import (
	"os/exec"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// ProcessPriority suggests niceness and IO-priority wrappers for the
// workload command. Apply is deliberately a no-op: re-nicing an arbitrary
// future process is the launcher's job, so this action only reports the
// wrappers to use.
type ProcessPriority struct {
	meta
	lookPath func(string) (string, error)
}

// NewProcessPriority returns the built-in process priority action.
func NewProcessPriority() *ProcessPriority {
	return &ProcessPriority{
		meta: meta{
			id:           "process.priority",
			title:        "Process Priority Suggestions",
			category:     "process",
			why:          "Process niceness and IO priority can reduce scheduling jitter during training runs.",
			risk:         types.RiskLow,
			requiresRoot: false,
			platforms:    []string{"linux", "windows", "macos"},
			profileMin:   types.ProfileMinimal,
		},
		lookPath: exec.LookPath,
	}
}

// commands builds the suggested wrapper command lines for the host.
func (a *ProcessPriority) commands(ctx types.ExecutionContext) []string {
	commands := []string{"nice -n -5 <your_command>"}
	if ctx.IsLinux && a.ioniceAvailable() {
		commands = append(commands, "ionice -c2 -n0 <your_command>")
	}
	return commands
}

func (a *ProcessPriority) ioniceAvailable() bool {
	_, err := a.lookPath("ionice")
	return err == nil
}

// Check always succeeds; the action carries suggestions, not prerequisites.
func (a *ProcessPriority) Check(ctx types.ExecutionContext) (bool, map[string]any, []string) {
	ionice := false
	if ctx.IsLinux {
		ionice = a.ioniceAvailable()
	}
	return true, map[string]any{
		"ionice_available": ionice,
		"os_name":          ctx.OSName,
	}, nil
}

// Plan recommends the wrappers for balanced-and-above profiles.
func (a *ProcessPriority) Plan(ctx types.ExecutionContext) (bool, []string, map[string]any, []string) {
	supported, _, notes := a.Check(ctx)
	recommend := supported && ctx.Profile().AtLeast(types.ProfileBalanced)
	commands := a.commands(ctx)
	if !recommend {
		notes = append(notes, "Lower profile requested; suggestions remain optional")
	}
	return recommend, commands, map[string]any{"suggestions": commands}, notes
}

// Apply never mutates; it reports the suggested wrappers with an explicit
// no-op reason.
func (a *ProcessPriority) Apply(ctx types.ExecutionContext) types.AccelerationActionResult {
	supported, before, notes := a.Check(ctx)
	commands := a.commands(ctx)
	return types.AccelerationActionResult{
		ActionID:      a.id,
		Title:         a.title,
		Supported:     supported,
		Applied:       false,
		SkippedReason: types.SkipReason("No-op action. Use suggested command wrappers for training runs."),
		RequiresRoot:  a.requiresRoot,
		Risk:          a.risk,
		Before:        before,
		After:         map[string]any{"suggestions": commands, "notes": notes},
		Commands:      commands,
		Errors:        []string{},
		ReturnCodes:   map[string]int{},
		StdoutTail:    []string{},
		StderrTail:    []string{},
	}
}
