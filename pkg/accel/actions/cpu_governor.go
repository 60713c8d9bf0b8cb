package actions

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/execmd"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// scalingGovernorPath exposes the active frequency scaling policy for the
// first CPU; cpufreq keeps all cores on the same governor in practice.
const scalingGovernorPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor"

const governorCommand = "cpupower frequency-set -g performance"

// CPUGovernor pins the CPU frequency scaling governor to "performance" so
// long-running workloads see consistent clock behavior.
type CPUGovernor struct {
	meta
	governorPath string
	runner       execmd.Runner
	lookPath     func(string) (string, error)
}

// NewCPUGovernor returns the built-in CPU governor action.
func NewCPUGovernor() *CPUGovernor {
	return &CPUGovernor{
		meta: meta{
			id:           "cpu.governor",
			title:        "CPU Governor",
			category:     "cpu",
			why:          "Keep CPU frequency policy aligned for consistent training throughput.",
			risk:         types.RiskMedium,
			requiresRoot: true,
			platforms:    []string{"linux"},
			profileMin:   types.ProfileMinimal,
		},
		governorPath: scalingGovernorPath,
		runner:       execmd.Run,
		lookPath:     exec.LookPath,
	}
}

// readGovernor returns the current governor, or "" when the sysfs path is
// missing or unreadable.
func (a *CPUGovernor) readGovernor() string {
	data, err := os.ReadFile(a.governorPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Check probes for cpupower and the sysfs governor path without mutating
// anything.
func (a *CPUGovernor) Check(ctx types.ExecutionContext) (bool, map[string]any, []string) {
	if !types.PlatformSupported(a, ctx) {
		return false, map[string]any{"reason": "Unsupported OS"}, []string{"Linux only action"}
	}

	cpupowerPath, err := a.lookPath("cpupower")
	if err != nil {
		cpupowerPath = ""
	}
	currentGovernor := a.readGovernor()

	var notes []string
	if cpupowerPath == "" {
		notes = append(notes, "cpupower not found")
	}
	if currentGovernor == "" {
		notes = append(notes, "scaling governor path missing")
	}

	supported := cpupowerPath != "" && currentGovernor != ""
	facts := map[string]any{
		"cpupower_path":    cpupowerPath,
		"current_governor": currentGovernor,
	}
	return supported, facts, notes
}

// Plan recommends the performance governor for balanced-and-above profiles
// when the host is not already on it.
func (a *CPUGovernor) Plan(ctx types.ExecutionContext) (bool, []string, map[string]any, []string) {
	supported, before, notes := a.Check(ctx)
	if !supported {
		return false, []string{}, before, notes
	}

	current, _ := before["current_governor"].(string)
	recommend := ctx.Profile().AtLeast(types.ProfileBalanced) && current != "performance"
	commands := []string{governorCommand}

	if !recommend {
		notes = append(notes, "No change needed for current profile/governor")
	}

	return recommend, commands, map[string]any{"target_governor": "performance"}, notes
}

// Apply sets the performance governor via cpupower and re-reads the
// resulting state.
func (a *CPUGovernor) Apply(ctx types.ExecutionContext) types.AccelerationActionResult {
	supported, before, notes := a.Check(ctx)
	if !supported {
		return a.unsupportedResult(before, notes)
	}

	if a.requiresRoot && !ctx.UserIsRoot {
		return a.privilegeResult(before, []string{governorCommand})
	}

	res := a.runner(context.Background(), execmd.CommandTimeout, "cpupower", "frequency-set", "-g", "performance")
	if res.Err != nil {
		return a.spawnFailureResult(before, governorCommand, res.Err)
	}

	after := map[string]any{
		"current_governor": a.readGovernor(),
		"stdout":           res.Stdout,
		"stderr":           res.Stderr,
		"returncode":       res.Code,
	}

	applied := res.Code == 0
	var skipped *string
	errs := []string{}
	if !applied {
		skipped = types.SkipReason("cpupower returned non-zero exit code")
		msg := res.Stderr
		if msg == "" {
			msg = "Unknown cpupower error"
		}
		errs = append(errs, msg)
	}

	return types.AccelerationActionResult{
		ActionID:      a.id,
		Title:         a.title,
		Supported:     true,
		Applied:       applied,
		SkippedReason: skipped,
		RequiresRoot:  a.requiresRoot,
		Risk:          a.risk,
		Before:        before,
		After:         after,
		Commands:      []string{governorCommand},
		Errors:        errs,
		ReturnCodes:   map[string]int{"cpupower": res.Code},
		StdoutTail:    execmd.Tail(res.Stdout),
		StderrTail:    execmd.Tail(res.Stderr),
	}
}
