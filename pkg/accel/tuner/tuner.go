// Package tuner implements the reversible whole-system tuning toggle: it
// captures the pre-change value of every applicable tunable, applies the
// acceleration policy, and later restores exactly what was captured.
//
// The snapshot is the contract between apply and restore: a tunable that
// could not be read is absent from the snapshot and is never restored.
// Restore is best-effort per key, not all-or-nothing.
package tuner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/execmd"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// Sysfs and procfs paths for the CPU tunables.
const (
	scalingGovernorPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor"
	swappinessPath      = "/proc/sys/vm/swappiness"
)

// Acceleration targets.
const (
	targetGovernor   = "performance"
	targetSwappiness = 10
	minSoftNofile    = 65535
	niceDelta        = -5
)

// Change result tags. Apply produces planned/applied/skipped/failed;
// restore produces planned/restored/skipped/failed.
const (
	ResultPlanned  = "planned"
	ResultApplied  = "applied"
	ResultRestored = "restored"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

var (
	persistencePattern = regexp.MustCompile(`(?i)Persistence Mode\s*:\s*(Enabled|Disabled)`)
	powerPlanPattern   = regexp.MustCompile(`([0-9a-fA-F-]{36})`)
)

// RlimitPair is the soft/hard open-file limit pair.
type RlimitPair struct {
	Soft uint64 `json:"soft"`
	Hard uint64 `json:"hard"`
}

// Snapshot is the flat previous-state mapping persisted at "on" time.
// Every field is a pointer: nil means the tunable could not be read and
// must never be restored.
type Snapshot struct {
	Nice              *int        `json:"nice,omitempty"`
	RlimitNofile      *RlimitPair `json:"rlimit_nofile,omitempty"`
	CPUGovernor       *string     `json:"cpu_governor,omitempty"`
	Swappiness        *int        `json:"swappiness,omitempty"`
	NvidiaPersistence *string     `json:"nvidia_persistence_mode,omitempty"`
	ProcessPriority   *uint32     `json:"process_priority,omitempty"`
	PowerPlanGUID     *string     `json:"power_plan_guid,omitempty"`
}

// Change records the outcome for one tunable in one apply or restore pass.
type Change struct {
	Name    string `json:"name"`
	Result  string `json:"result"`
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
}

// Options select the scope and execution mode of one apply pass.
type Options struct {
	CPUOnly bool
	GPUOnly bool
	DryRun  bool
}

// Tuner reads and mutates host tunables. External commands run through an
// injectable runner; process-local tunables go through injectable system
// call wrappers so tests never mutate the host.
type Tuner struct {
	runner   execmd.Runner
	lookPath func(string) (string, error)

	governorFile   string
	swappinessFile string

	getNice func() (int, error)
	setNice func(int) error

	getRlimitNofile func() (soft, hard uint64, err error)
	setRlimitNofile func(soft, hard uint64) error

	getPriorityClass func() (uint32, error)
	setPriorityClass func(uint32) error
}

// New returns a Tuner bound to the real host.
func New() *Tuner {
	return &Tuner{
		runner:           execmd.Run,
		lookPath:         exec.LookPath,
		governorFile:     scalingGovernorPath,
		swappinessFile:   swappinessPath,
		getNice:          currentNice,
		setNice:          setNiceValue,
		getRlimitNofile:  currentRlimitNofile,
		setRlimitNofile:  setRlimitNofileValues,
		getPriorityClass: currentPriorityClass,
		setPriorityClass: setPriorityClassValue,
	}
}

// Capture reads, without mutating, the current value of every tunable
// applicable to the host and scope. Unreadable tunables stay nil.
func (t *Tuner) Capture(ctx context.Context, host types.ExecutionContext, cpuOnly, gpuOnly bool) Snapshot {
	var snapshot Snapshot

	if nice, err := t.getNice(); err == nil {
		snapshot.Nice = &nice
	}
	if soft, hard, err := t.getRlimitNofile(); err == nil {
		snapshot.RlimitNofile = &RlimitPair{Soft: soft, Hard: hard}
	}

	if host.IsLinux && !gpuOnly {
		snapshot.CPUGovernor = t.readGovernor()
		snapshot.Swappiness = t.readSwappiness()
	}

	if host.HasNvidiaSMI && !cpuOnly {
		snapshot.NvidiaPersistence = t.readPersistence(ctx)
	}

	if host.IsWindows && !gpuOnly {
		if class, err := t.getPriorityClass(); err == nil {
			snapshot.ProcessPriority = &class
		}
		snapshot.PowerPlanGUID = t.readPowerPlan(ctx)
	}

	return snapshot
}

func (t *Tuner) readGovernor() *string {
	data, err := os.ReadFile(t.governorFile)
	if err != nil {
		return nil
	}
	governor := strings.TrimSpace(string(data))
	return &governor
}

func (t *Tuner) readSwappiness() *int {
	data, err := os.ReadFile(t.swappinessFile)
	if err != nil {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil
	}
	return &value
}

func (t *Tuner) readPersistence(ctx context.Context) *string {
	result := t.runner(ctx, execmd.CommandTimeout, "nvidia-smi", "-q", "-d", "PERFORMANCE")
	if result.Err != nil || result.Code != 0 {
		return nil
	}
	match := persistencePattern.FindStringSubmatch(result.Stdout)
	if match == nil {
		return nil
	}
	mode := strings.ToLower(match[1])
	return &mode
}

func (t *Tuner) readPowerPlan(ctx context.Context) *string {
	result := t.runner(ctx, execmd.CommandTimeout, "powercfg", "/getactivescheme")
	if result.Err != nil || result.Code != 0 {
		return nil
	}
	match := powerPlanPattern.FindString(result.Stdout)
	if match == "" {
		return nil
	}
	return &match
}

// commandError extracts the failure text from a runner result, matching
// the stderr-or-exception convention of the change messages.
func commandError(result execmd.Result) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	if message := strings.TrimSpace(result.Stderr); message != "" {
		return message
	}
	return "unknown error"
}

// changeList accumulates change records and the failure messages for
// tunables whose mutation failed outright.
type changeList struct {
	changes  []Change
	failures []string
}

func (l *changeList) add(name, result, message string) {
	l.changes = append(l.changes, Change{Name: name, Result: result, Message: message})
}

func (l *changeList) addCommand(name, result, message, command string) {
	l.changes = append(l.changes, Change{Name: name, Result: result, Message: message, Command: command})
}

func (l *changeList) fail(name, message string) {
	l.failures = append(l.failures, name+": "+message)
	l.add(name, ResultFailed, message)
}

// Apply pushes the acceleration policy onto the host in fixed order:
// CPU governor, process niceness, swappiness, file-descriptor limit,
// OS-specific priority and power plan, GPU persistence. Each tunable's
// failure is independent; the pass never aborts early. With DryRun no
// command executes and every change is recorded as planned.
func (t *Tuner) Apply(ctx context.Context, host types.ExecutionContext, snapshot Snapshot, opts Options) ([]Change, []string) {
	list := &changeList{changes: []Change{}, failures: []string{}}

	if host.IsLinux && !opts.GPUOnly {
		t.applyGovernor(ctx, host, snapshot, opts.DryRun, list)
		t.applyNice(opts.DryRun, list)
		t.applySwappiness(ctx, host, snapshot, opts.DryRun, list)
		t.applyRlimit(snapshot, opts.DryRun, list)
	}

	if host.IsWindows && !opts.GPUOnly {
		t.applyWindowsPriority(opts.DryRun, list)
		t.applyPowerPlan(ctx, opts.DryRun, list)
	}

	switch {
	case host.HasNvidiaSMI && !opts.CPUOnly:
		t.applyPersistence(ctx, host, opts.DryRun, list)
	case !opts.GPUOnly:
		list.add("nvidia_persistence", ResultSkipped, "nvidia-smi not found")
	}

	return list.changes, list.failures
}

func (t *Tuner) applyGovernor(ctx context.Context, host types.ExecutionContext, snapshot Snapshot, dryRun bool, list *changeList) {
	const command = "cpupower frequency-set -g " + targetGovernor
	switch {
	case snapshot.CPUGovernor == nil:
		list.add("cpu_governor", ResultSkipped, "governor path unavailable")
	case dryRun:
		list.addCommand("cpu_governor", ResultPlanned, "would set governor to "+targetGovernor, command)
	case !host.UserIsRoot:
		list.add("cpu_governor", ResultSkipped, "root required")
	case !t.toolAvailable("cpupower"):
		list.add("cpu_governor", ResultSkipped, "cpupower not installed")
	default:
		result := t.runner(ctx, execmd.CommandTimeout, "cpupower", "frequency-set", "-g", targetGovernor)
		if result.Err == nil && result.Code == 0 {
			list.addCommand("cpu_governor", ResultApplied, "set to "+targetGovernor, command)
		} else {
			list.fail("cpu_governor", commandError(result))
		}
	}
}

func (t *Tuner) applyNice(dryRun bool, list *changeList) {
	if dryRun {
		list.add("process_nice", ResultPlanned, fmt.Sprintf("would raise process priority (nice %d)", niceDelta))
		return
	}
	current, err := t.getNice()
	if err == nil {
		err = t.setNice(current + niceDelta)
	}
	if err != nil {
		list.add("process_nice", ResultSkipped, "insufficient permission: "+err.Error())
		return
	}
	list.add("process_nice", ResultApplied, "raised process priority")
}

func (t *Tuner) applySwappiness(ctx context.Context, host types.ExecutionContext, snapshot Snapshot, dryRun bool, list *changeList) {
	command := fmt.Sprintf("sysctl -w vm.swappiness=%d", targetSwappiness)
	switch {
	case snapshot.Swappiness == nil:
		list.add("swappiness", ResultSkipped, "swappiness not available")
	case dryRun:
		list.addCommand("swappiness", ResultPlanned, fmt.Sprintf("would set vm.swappiness=%d", targetSwappiness), command)
	case !host.UserIsRoot:
		list.add("swappiness", ResultSkipped, "root required")
	default:
		result := t.runner(ctx, execmd.CommandTimeout, "sysctl", "-w", fmt.Sprintf("vm.swappiness=%d", targetSwappiness))
		if result.Err == nil && result.Code == 0 {
			list.addCommand("swappiness", ResultApplied, fmt.Sprintf("vm.swappiness set to %d", targetSwappiness), command)
		} else {
			list.fail("swappiness", commandError(result))
		}
	}
}

func (t *Tuner) applyRlimit(snapshot Snapshot, dryRun bool, list *changeList) {
	if snapshot.RlimitNofile == nil {
		list.add("ulimit_nofile", ResultSkipped, "rlimit unavailable")
		return
	}
	if dryRun {
		list.add("ulimit_nofile", ResultPlanned, "would raise soft open-file limit")
		return
	}
	soft, hard := snapshot.RlimitNofile.Soft, snapshot.RlimitNofile.Hard
	target := max(soft, minSoftNofile)
	if target > hard {
		target = hard
	}
	if err := t.setRlimitNofile(target, hard); err != nil {
		list.add("ulimit_nofile", ResultSkipped, "unable to set rlimit: "+err.Error())
		return
	}
	list.add("ulimit_nofile", ResultApplied, fmt.Sprintf("soft limit set to %d", target))
}

func (t *Tuner) applyWindowsPriority(dryRun bool, list *changeList) {
	if dryRun {
		list.add("windows_process_priority", ResultPlanned, "would set HIGH priority")
		return
	}
	if err := t.setPriorityClass(highPriorityClass); err != nil {
		list.add("windows_process_priority", ResultSkipped, err.Error())
		return
	}
	list.add("windows_process_priority", ResultApplied, "set HIGH priority")
}

func (t *Tuner) applyPowerPlan(ctx context.Context, dryRun bool, list *changeList) {
	if dryRun {
		list.add("windows_power_plan", ResultPlanned, "would set high performance power plan")
		return
	}
	result := t.runner(ctx, execmd.CommandTimeout, "powercfg", "/setactive", "SCHEME_MIN")
	if result.Err == nil && result.Code == 0 {
		list.add("windows_power_plan", ResultApplied, "set high performance power plan")
		return
	}
	list.add("windows_power_plan", ResultSkipped, commandError(result))
}

func (t *Tuner) applyPersistence(ctx context.Context, host types.ExecutionContext, dryRun bool, list *changeList) {
	const command = "nvidia-smi -pm 1"
	switch {
	case dryRun:
		list.addCommand("nvidia_persistence", ResultPlanned, "would enable persistence mode", command)
	case !host.UserIsRoot:
		list.add("nvidia_persistence", ResultSkipped, "root/admin may be required")
	default:
		result := t.runner(ctx, execmd.CommandTimeout, "nvidia-smi", "-pm", "1")
		if result.Err == nil && result.Code == 0 {
			list.addCommand("nvidia_persistence", ResultApplied, "enabled persistence mode", command)
		} else {
			list.add("nvidia_persistence", ResultSkipped, commandError(result))
		}
	}
}

// Restore reverses a previous apply using only the captured snapshot:
// every tunable present is set back to its captured value, and a tunable
// absent from the snapshot is never touched.
func (t *Tuner) Restore(ctx context.Context, host types.ExecutionContext, snapshot Snapshot, dryRun bool) ([]Change, []string) {
	list := &changeList{changes: []Change{}, failures: []string{}}

	if host.IsLinux {
		t.restoreGovernor(ctx, host, snapshot, dryRun, list)
		t.restoreSwappiness(ctx, host, snapshot, dryRun, list)
		t.restoreRlimit(snapshot, dryRun, list)
	}

	if host.HasNvidiaSMI {
		t.restorePersistence(ctx, host, snapshot, dryRun, list)
	}

	if host.IsWindows {
		t.restoreWindowsPriority(snapshot, dryRun, list)
		t.restorePowerPlan(ctx, snapshot, dryRun, list)
	}

	return list.changes, list.failures
}

func (t *Tuner) restoreGovernor(ctx context.Context, host types.ExecutionContext, snapshot Snapshot, dryRun bool, list *changeList) {
	if snapshot.CPUGovernor == nil || *snapshot.CPUGovernor == "" {
		return
	}
	governor := *snapshot.CPUGovernor
	switch {
	case dryRun:
		list.add("cpu_governor", ResultPlanned, "would restore governor="+governor)
	case host.UserIsRoot && t.toolAvailable("cpupower"):
		result := t.runner(ctx, execmd.CommandTimeout, "cpupower", "frequency-set", "-g", governor)
		if result.Err == nil && result.Code == 0 {
			list.add("cpu_governor", ResultRestored, "restored governor="+governor)
		} else {
			list.failures = append(list.failures, "cpu_governor restore: "+commandError(result))
			list.add("cpu_governor", ResultFailed, commandError(result))
		}
	default:
		list.add("cpu_governor", ResultSkipped, "root/cpupower unavailable for restore")
	}
}

func (t *Tuner) restoreSwappiness(ctx context.Context, host types.ExecutionContext, snapshot Snapshot, dryRun bool, list *changeList) {
	if snapshot.Swappiness == nil {
		return
	}
	value := *snapshot.Swappiness
	switch {
	case dryRun:
		list.add("swappiness", ResultPlanned, fmt.Sprintf("would restore vm.swappiness=%d", value))
	case host.UserIsRoot:
		result := t.runner(ctx, execmd.CommandTimeout, "sysctl", "-w", fmt.Sprintf("vm.swappiness=%d", value))
		if result.Err == nil && result.Code == 0 {
			list.add("swappiness", ResultRestored, fmt.Sprintf("restored vm.swappiness=%d", value))
		} else {
			list.add("swappiness", ResultFailed, commandError(result))
		}
	default:
		list.add("swappiness", ResultSkipped, "root required for restore")
	}
}

func (t *Tuner) restoreRlimit(snapshot Snapshot, dryRun bool, list *changeList) {
	if snapshot.RlimitNofile == nil {
		return
	}
	soft, hard := snapshot.RlimitNofile.Soft, snapshot.RlimitNofile.Hard
	if dryRun {
		list.add("ulimit_nofile", ResultPlanned, fmt.Sprintf("would restore soft=%d, hard=%d", soft, hard))
		return
	}
	if err := t.setRlimitNofile(soft, hard); err != nil {
		list.add("ulimit_nofile", ResultSkipped, "unable to restore rlimit: "+err.Error())
		return
	}
	list.add("ulimit_nofile", ResultRestored, fmt.Sprintf("restored soft=%d, hard=%d", soft, hard))
}

func (t *Tuner) restorePersistence(ctx context.Context, host types.ExecutionContext, snapshot Snapshot, dryRun bool, list *changeList) {
	if snapshot.NvidiaPersistence == nil {
		return
	}
	previous := *snapshot.NvidiaPersistence
	if previous != "enabled" && previous != "disabled" {
		return
	}
	target := "0"
	if previous == "enabled" {
		target = "1"
	}
	switch {
	case dryRun:
		list.add("nvidia_persistence", ResultPlanned, "would restore persistence="+previous)
	case host.UserIsRoot:
		result := t.runner(ctx, execmd.CommandTimeout, "nvidia-smi", "-pm", target)
		if result.Err == nil && result.Code == 0 {
			list.add("nvidia_persistence", ResultRestored, "restored persistence="+previous)
		} else {
			list.add("nvidia_persistence", ResultFailed, commandError(result))
		}
	default:
		list.add("nvidia_persistence", ResultSkipped, "root/admin may be required for restore")
	}
}

func (t *Tuner) restoreWindowsPriority(snapshot Snapshot, dryRun bool, list *changeList) {
	if snapshot.ProcessPriority == nil {
		return
	}
	priority := *snapshot.ProcessPriority
	if dryRun {
		list.add("windows_process_priority", ResultPlanned, fmt.Sprintf("would restore priority=%d", priority))
		return
	}
	if err := t.setPriorityClass(priority); err != nil {
		list.add("windows_process_priority", ResultSkipped, "unable to restore priority: "+err.Error())
		return
	}
	list.add("windows_process_priority", ResultRestored, fmt.Sprintf("restored priority=%d", priority))
}

func (t *Tuner) restorePowerPlan(ctx context.Context, snapshot Snapshot, dryRun bool, list *changeList) {
	if snapshot.PowerPlanGUID == nil || *snapshot.PowerPlanGUID == "" {
		return
	}
	guid := *snapshot.PowerPlanGUID
	if dryRun {
		list.add("windows_power_plan", ResultPlanned, "would restore power plan="+guid)
		return
	}
	result := t.runner(ctx, execmd.CommandTimeout, "powercfg", "/setactive", guid)
	if result.Err == nil && result.Code == 0 {
		list.add("windows_power_plan", ResultRestored, "restored power plan="+guid)
		return
	}
	list.add("windows_power_plan", ResultSkipped, commandError(result))
}

func (t *Tuner) toolAvailable(name string) bool {
	_, err := t.lookPath(name)
	return err == nil
}
