// Package report assembles the deterministic JSON document each engine
// invocation produces: context, plan, per-action results, plugin summary,
// and warnings. Field names and sortedness are the wire contract other
// tooling depends on; do not reorder or rename without versioning the
// schema.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/plugin"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// LatestFileName is the well-known location of the most recent report,
// relative to the engine root.
const LatestFileName = ".hydra/state/launch_latest.json"

// Modes reported for a launch run.
const (
	ModeApply  = "apply"
	ModeDryRun = "dry-run"
)

// Summary carries the applied/skipped/unsupported counts so consumers can
// render a status line without re-parsing per-action detail.
type Summary struct {
	Applied     int `json:"applied"`
	Skipped     int `json:"skipped"`
	Unsupported int `json:"unsupported"`
	Total       int `json:"total"`
}

// PluginSummary summarizes the plugin directory scan. Key names are kept
// stable for existing report consumers.
type PluginSummary struct {
	ActionsLoaded   int      `json:"actions_loaded"`
	LoadedFiles     []string `json:"loaded_files"`
	Failures        []string `json:"failures"`
	PreApplyShell   []string `json:"pre_apply_shell"`
	PostApplyShell  []string `json:"post_apply_shell"`
	PreApplyNative  int      `json:"pre_apply_py_count"`
	PostApplyNative int      `json:"post_apply_py_count"`
}

// Report is the complete launch document.
type Report struct {
	SchemaVersion     string                           `json:"schema_version"`
	Mode              string                           `json:"mode"`
	Plan              types.AccelerationPlan           `json:"plan"`
	Context           types.ExecutionContext           `json:"context"`
	SelectedActionIDs []string                         `json:"selected_action_ids"`
	Summary           Summary                          `json:"summary"`
	Results           []types.AccelerationActionResult `json:"results"`
	PluginSummary     PluginSummary                    `json:"plugin_summary"`
	Warnings          []string                         `json:"warnings"`
}

// Build assembles a report. Results are sorted by action id, selected ids
// are sorted, and warnings are the plan warnings followed by any apply or
// hook warnings. Every result must satisfy the skip-reason invariant.
func Build(
	plan types.AccelerationPlan,
	results []types.AccelerationActionResult,
	ctx types.ExecutionContext,
	selectedIDs []string,
	dryRun bool,
	plugins plugin.LoadResult,
	hookWarnings []string,
) (Report, error) {
	sorted := make([]types.AccelerationActionResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ActionID < sorted[j].ActionID })

	var summary Summary
	summary.Total = len(sorted)
	for i := range sorted {
		if err := sorted[i].Validate(); err != nil {
			return Report{}, fmt.Errorf("build report: %w", err)
		}
		if sorted[i].Applied {
			summary.Applied++
		} else if sorted[i].SkippedReason != nil {
			summary.Skipped++
		}
		if !sorted[i].Supported {
			summary.Unsupported++
		}
	}

	selected := make([]string, len(selectedIDs))
	copy(selected, selectedIDs)
	sort.Strings(selected)

	mode := ModeApply
	if dryRun {
		mode = ModeDryRun
	}

	warnings := make([]string, 0, len(plan.Warnings)+len(hookWarnings))
	warnings = append(warnings, plan.Warnings...)
	warnings = append(warnings, hookWarnings...)

	return Report{
		SchemaVersion:     types.SchemaVersion,
		Mode:              mode,
		Plan:              plan,
		Context:           ctx,
		SelectedActionIDs: selected,
		Summary:           summary,
		Results:           sorted,
		PluginSummary: PluginSummary{
			ActionsLoaded:   plugins.ActionsLoaded,
			LoadedFiles:     plugins.LoadedFiles,
			Failures:        plugins.Failures,
			PreApplyShell:   shellPaths(plugins.Hooks.PreApplyShell),
			PostApplyShell:  shellPaths(plugins.Hooks.PostApplyShell),
			PreApplyNative:  len(plugins.Hooks.PreApplyNative),
			PostApplyNative: len(plugins.Hooks.PostApplyNative),
		},
		Warnings: warnings,
	}, nil
}

func shellPaths(paths []string) []string {
	if paths == nil {
		return []string{}
	}
	return paths
}

// Encode renders the report as indented JSON with a trailing newline.
func Encode(r Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes the report to path with a write-then-rename.
func WriteFile(path string, r Report) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

// WriteLatest persists the report at the well-known latest path under
// root and returns that path.
func WriteLatest(root string, r Report) (string, error) {
	path := filepath.Join(root, filepath.FromSlash(LatestFileName))
	if err := WriteFile(path, r); err != nil {
		return "", err
	}
	return path, nil
}
