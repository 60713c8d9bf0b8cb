// Package actions contains the built-in acceleration actions. Each action
// owns one tunable and implements the check/plan/apply contract; all host
// state is read fresh on every call.
package actions

import (
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/registry"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// meta carries the static metadata shared by every built-in action.
type meta struct {
	id           string
	title        string
	category     string
	why          string
	risk         types.Risk
	requiresRoot bool
	platforms    []string
	profileMin   types.Profile
}

func (m meta) ID() string                { return m.id }
func (m meta) Title() string             { return m.title }
func (m meta) Category() string          { return m.category }
func (m meta) Why() string               { return m.why }
func (m meta) Risk() types.Risk          { return m.risk }
func (m meta) RequiresRoot() bool        { return m.requiresRoot }
func (m meta) Platforms() []string       { return m.platforms }
func (m meta) ProfileMin() types.Profile { return m.profileMin }

// unsupportedResult builds the result for an action whose prerequisite is
// absent, carrying the check notes as the skip reason.
func (m meta) unsupportedResult(before map[string]any, notes []string) types.AccelerationActionResult {
	reason := strings.Join(notes, "; ")
	if reason == "" {
		reason = "Unsupported"
	}
	return types.AccelerationActionResult{
		ActionID:      m.id,
		Title:         m.title,
		Supported:     false,
		Applied:       false,
		SkippedReason: types.SkipReason(reason),
		RequiresRoot:  m.requiresRoot,
		Risk:          m.risk,
		Before:        before,
		After:         before,
		Commands:      []string{},
		Errors:        []string{},
		ReturnCodes:   map[string]int{},
		StdoutTail:    []string{},
		StderrTail:    []string{},
	}
}

// privilegeResult builds the result for a supported action the caller
// lacks privileges to apply. It is reported distinctly from unsupported
// because the remediation differs.
func (m meta) privilegeResult(before map[string]any, commands []string) types.AccelerationActionResult {
	return types.AccelerationActionResult{
		ActionID:      m.id,
		Title:         m.title,
		Supported:     true,
		Applied:       false,
		SkippedReason: types.SkipReason("Root privileges required"),
		RequiresRoot:  m.requiresRoot,
		Risk:          m.risk,
		Before:        before,
		After:         before,
		Commands:      commands,
		Errors:        []string{},
		ReturnCodes:   map[string]int{},
		StdoutTail:    []string{},
		StderrTail:    []string{},
	}
}

// spawnFailureResult builds the result for a command that could not run
// at all (spawn failure or timeout).
func (m meta) spawnFailureResult(before map[string]any, command string, err error) types.AccelerationActionResult {
	return types.AccelerationActionResult{
		ActionID:      m.id,
		Title:         m.title,
		Supported:     true,
		Applied:       false,
		SkippedReason: types.SkipReason("Command execution failed"),
		RequiresRoot:  m.requiresRoot,
		Risk:          m.risk,
		Before:        before,
		After:         before,
		Commands:      []string{command},
		Errors:        []string{err.Error()},
		ReturnCodes:   map[string]int{},
		StdoutTail:    []string{},
		StderrTail:    []string{},
	}
}

// RegisterBuiltins adds the fixed built-in action set to the registry.
func RegisterBuiltins(r *registry.Registry) {
	r.Register(NewCPUGovernor())
	r.Register(NewNvidiaPersistence())
	r.Register(NewProcessPriority())
}
