package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/logging"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/output"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/probe"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/state"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/tuner"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

var accelFlags struct {
	on      bool
	off     bool
	status  bool
	dryRun  bool
	cpuOnly bool
	gpuOnly bool
}

var accelerateCmd = &cobra.Command{
	Use:   "accelerate",
	Short: "Toggle whole-system acceleration on or off",
	Long: `Accelerate captures the current value of every applicable system tunable,
applies the acceleration policy (CPU governor, process priority, swap
pressure, file-descriptor limits, GPU persistence), and persists the
captured state so --off can restore exactly what was found.`,
	Args: cobra.NoArgs,
	RunE: runAccelerate,
}

func init() {
	rootCmd.AddCommand(accelerateCmd)

	f := accelerateCmd.Flags()
	f.BoolVar(&accelFlags.on, "on", false, "enable acceleration mode")
	f.BoolVar(&accelFlags.off, "off", false, "restore previous system settings")
	f.BoolVar(&accelFlags.status, "status", false, "show current acceleration state (default)")
	f.BoolVar(&accelFlags.dryRun, "dry-run", false, "show what would be changed")
	f.BoolVar(&accelFlags.cpuOnly, "cpu-only", false, "apply CPU optimizations only")
	f.BoolVar(&accelFlags.gpuOnly, "gpu-only", false, "apply GPU optimizations only")
}

func runAccelerate(cmd *cobra.Command, args []string) error {
	if accelFlags.cpuOnly && accelFlags.gpuOnly {
		return usageErrorf("cannot combine --cpu-only and --gpu-only")
	}

	selected := 0
	for _, flag := range []bool{accelFlags.on, accelFlags.off, accelFlags.status} {
		if flag {
			selected++
		}
	}
	if selected > 1 {
		return usageErrorf("use only one of --on, --off, --status")
	}

	// Anything that goes wrong past argument validation is a critical
	// failure: the host may be in a half-toggled state.
	if err := accelerateRun(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return err
		}
		return &exitError{code: 4, message: fmt.Sprintf("Accelerate critical failure: %v", err)}
	}
	return nil
}

func accelerateRun() error {
	logger := logging.Get("accelerate")

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	host := probe.Detect(cwd)
	ctx := context.Background()

	switch {
	case accelFlags.on:
		return accelerateOn(ctx, host, cwd, logger)
	case accelFlags.off:
		return accelerateOff(ctx, host, cwd, logger)
	default:
		return accelerateStatus(host, cwd)
	}
}

// accelerateStatus renders the persisted session, or a synthetic inactive
// payload when none exists.
func accelerateStatus(host types.ExecutionContext, cwd string) error {
	payload, ok := state.Load(cwd)
	if !ok {
		payload = &state.Payload{
			Active:         false,
			Platform:       host.OSName,
			Timestamp:      state.UTCNow(),
			ChangesApplied: []tuner.Change{},
			Failures:       []string{},
		}
	}
	output.RenderToggleStatus(os.Stdout, *payload, getVerbose())
	return nil
}

// accelerateOn captures the previous state, applies the acceleration
// policy, and persists the session unless this is a dry run.
func accelerateOn(ctx context.Context, host types.ExecutionContext, cwd string, logger *logging.Logger) error {
	t := tuner.New()
	snapshot := t.Capture(ctx, host, accelFlags.cpuOnly, accelFlags.gpuOnly)
	changes, failures := t.Apply(ctx, host, snapshot, tuner.Options{
		CPUOnly: accelFlags.cpuOnly,
		GPUOnly: accelFlags.gpuOnly,
		DryRun:  accelFlags.dryRun,
	})

	mode := state.ModeOn
	if accelFlags.dryRun {
		mode = state.ModeDryRun
	}

	payload := state.Payload{
		Active:         !accelFlags.dryRun,
		Platform:       host.OSName,
		Timestamp:      state.UTCNow(),
		Mode:           mode,
		ChangesApplied: orEmptyChanges(changes),
		PreviousState:  snapshot,
		Failures:       orEmptyStrings(failures),
	}

	if !accelFlags.dryRun {
		if err := state.Save(cwd, payload); err != nil {
			return err
		}
	}

	logger.Info("acceleration toggled on",
		"dry_run", accelFlags.dryRun, "changes", len(changes), "failures", len(failures))

	if getVerbose() {
		dumpPayload(payload)
	}
	output.RenderToggleStatus(os.Stdout, payload, getVerbose())
	return nil
}

// accelerateOff restores the captured previous state. Without a persisted
// session there is nothing to restore and the command reports that.
func accelerateOff(ctx context.Context, host types.ExecutionContext, cwd string, logger *logging.Logger) error {
	existing, ok := state.Load(cwd)
	if !ok {
		payload := state.Payload{
			Active:         false,
			Platform:       host.OSName,
			Timestamp:      state.UTCNow(),
			Mode:           state.ModeOff,
			ChangesApplied: []tuner.Change{},
			Failures:       []string{},
			Message:        "No active acceleration state found.",
		}
		output.RenderToggleStatus(os.Stdout, payload, getVerbose())
		return nil
	}

	t := tuner.New()
	changes, failures := t.Restore(ctx, host, existing.PreviousState, accelFlags.dryRun)

	mode := state.ModeOff
	if accelFlags.dryRun {
		mode = state.ModeDryRun
	}

	payload := state.Payload{
		Active:         false,
		Platform:       host.OSName,
		Timestamp:      state.UTCNow(),
		Mode:           mode,
		ChangesApplied: orEmptyChanges(changes),
		PreviousState:  existing.PreviousState,
		Failures:       orEmptyStrings(failures),
	}

	if !accelFlags.dryRun {
		if err := state.Save(cwd, payload); err != nil {
			return err
		}
	}

	logger.Info("acceleration toggled off",
		"dry_run", accelFlags.dryRun, "changes", len(changes), "failures", len(failures))

	if getVerbose() {
		dumpPayload(payload)
	}
	output.RenderToggleStatus(os.Stdout, payload, getVerbose())
	return nil
}

// dumpPayload writes the raw session JSON to stderr for --verbose.
func dumpPayload(payload state.Payload) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr, string(data))
}

func orEmptyChanges(changes []tuner.Change) []tuner.Change {
	if changes == nil {
		return []tuner.Change{}
	}
	return changes
}

func orEmptyStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
