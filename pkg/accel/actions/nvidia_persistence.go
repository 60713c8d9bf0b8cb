package actions

import (
	"context"
	"regexp"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/execmd"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// persistencePattern extracts the persistence mode line from
// "nvidia-smi -q -d PERFORMANCE" output.
var persistencePattern = regexp.MustCompile(`(?i)Persistence Mode\s*:\s*(Enabled|Disabled)`)

const persistenceCommand = "nvidia-smi -pm 1"

// rawExcerptLimit bounds how much driver query output the before snapshot
// keeps for diagnostics.
const rawExcerptLimit = 600

// NvidiaPersistence enables NVIDIA persistence mode, which keeps the
// driver loaded between CUDA clients.
type NvidiaPersistence struct {
	meta
	runner execmd.Runner
}

// NewNvidiaPersistence returns the built-in GPU persistence action.
func NewNvidiaPersistence() *NvidiaPersistence {
	return &NvidiaPersistence{
		meta: meta{
			id:           "gpu.nvidia_persistence",
			title:        "NVIDIA Persistence Mode",
			category:     "gpu",
			why:          "Persistence mode reduces startup latency and stabilizes GPU initialization.",
			risk:         types.RiskMedium,
			requiresRoot: true,
			platforms:    []string{"linux"},
			profileMin:   types.ProfileMinimal,
		},
		runner: execmd.Run,
	}
}

// readPersistence queries the driver for the current persistence mode.
// It returns supported=false when the query fails, with notes explaining
// why.
func (a *NvidiaPersistence) readPersistence() (bool, map[string]any, []string) {
	res := a.runner(context.Background(), execmd.CommandTimeout, "nvidia-smi", "-q", "-d", "PERFORMANCE")
	if res.Err != nil {
		return false, map[string]any{}, []string{"nvidia-smi failed: " + res.Err.Error()}
	}
	if res.Code != 0 {
		return false, map[string]any{
			"stdout":     res.Stdout,
			"stderr":     res.Stderr,
			"returncode": res.Code,
		}, []string{"nvidia-smi -q returned non-zero exit code"}
	}

	var state string
	if match := persistencePattern.FindStringSubmatch(res.Stdout); match != nil {
		state = strings.ToLower(match[1])
	}

	excerpt := res.Stdout
	if len(excerpt) > rawExcerptLimit {
		excerpt = excerpt[:rawExcerptLimit]
	}

	facts := map[string]any{
		"persistence_mode": state,
		"raw_excerpt":      excerpt,
	}
	var notes []string
	if state == "" {
		notes = append(notes, "Could not parse persistence mode")
	}
	return true, facts, notes
}

// Check verifies the platform, the presence of nvidia-smi, and that the
// driver answers a performance query.
func (a *NvidiaPersistence) Check(ctx types.ExecutionContext) (bool, map[string]any, []string) {
	if !types.PlatformSupported(a, ctx) {
		return false, map[string]any{"reason": "Unsupported OS"}, []string{"Linux only action"}
	}
	if !ctx.HasNvidiaSMI {
		return false, map[string]any{"reason": "nvidia-smi missing"}, []string{"nvidia-smi not available"}
	}
	return a.readPersistence()
}

// Plan recommends enabling persistence for balanced-and-above profiles
// when it is not already enabled.
func (a *NvidiaPersistence) Plan(ctx types.ExecutionContext) (bool, []string, map[string]any, []string) {
	supported, before, notes := a.Check(ctx)
	if !supported {
		return false, []string{}, before, notes
	}

	state, _ := before["persistence_mode"].(string)
	recommend := ctx.Profile().AtLeast(types.ProfileBalanced) && state != "enabled"
	commands := []string{persistenceCommand}

	if !recommend {
		notes = append(notes, "No change needed for current profile/state")
	}

	return recommend, commands, map[string]any{"target_persistence_mode": "enabled"}, notes
}

// Apply enables persistence mode and re-queries the driver for the after
// snapshot.
func (a *NvidiaPersistence) Apply(ctx types.ExecutionContext) types.AccelerationActionResult {
	supported, before, notes := a.Check(ctx)
	if !supported {
		return a.unsupportedResult(before, notes)
	}

	if a.requiresRoot && !ctx.UserIsRoot {
		return a.privilegeResult(before, []string{persistenceCommand})
	}

	res := a.runner(context.Background(), execmd.CommandTimeout, "nvidia-smi", "-pm", "1")
	if res.Err != nil {
		return a.spawnFailureResult(before, persistenceCommand, res.Err)
	}

	recheckSupported, afterState, recheckNotes := a.readPersistence()
	after := make(map[string]any, len(afterState)+4)
	for k, v := range afterState {
		after[k] = v
	}
	after["recheck_supported"] = recheckSupported
	after["recheck_notes"] = recheckNotes
	after["stdout"] = res.Stdout
	after["stderr"] = res.Stderr
	after["returncode"] = res.Code

	applied := res.Code == 0
	var skipped *string
	errs := []string{}
	if !applied {
		skipped = types.SkipReason("nvidia-smi returned non-zero exit code")
		msg := res.Stderr
		if msg == "" {
			msg = "Unknown nvidia-smi error"
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
		Commands:      []string{persistenceCommand},
		Errors:        errs,
		ReturnCodes:   map[string]int{persistenceCommand: res.Code},
		StdoutTail:    execmd.Tail(res.Stdout),
		StderrTail:    execmd.Tail(res.Stderr),
	}
}
