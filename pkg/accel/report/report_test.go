package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/plugin"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

func testPlan(warnings ...string) types.AccelerationPlan {
	return types.NewPlan(types.ProfileBalanced, []types.ActionDescriptor{
		{ActionID: "cpu.governor", Category: "cpu", Recommended: true, Supported: true, Commands: []string{}, Notes: []string{}},
		{ActionID: "gpu.nvidia_persistence", Category: "gpu", Commands: []string{}, Notes: []string{}},
	}, warnings, false)
}

func testContext() types.ExecutionContext {
	return types.ExecutionContext{OSName: "linux", IsLinux: true, Env: map[string]string{}}
}

func appliedResult(id string) types.AccelerationActionResult {
	return types.AccelerationActionResult{
		ActionID: id, Supported: true, Applied: true,
		Before: map[string]any{}, After: map[string]any{},
		Commands: []string{}, Errors: []string{}, ReturnCodes: map[string]int{},
		StdoutTail: []string{}, StderrTail: []string{},
	}
}

func skippedResult(id, reason string, supported bool) types.AccelerationActionResult {
	result := appliedResult(id)
	result.Supported = supported
	result.Applied = false
	result.SkippedReason = types.SkipReason(reason)
	return result
}

func emptyPlugins() plugin.LoadResult {
	return plugin.LoadResult{Warnings: []string{}, LoadedFiles: []string{}, Failures: []string{}}
}

func TestBuild_SummaryAndSortedness(t *testing.T) {
	t.Parallel()

	results := []types.AccelerationActionResult{
		skippedResult("gpu.nvidia_persistence", "nvidia-smi not available", false),
		appliedResult("cpu.governor"),
		skippedResult("process.priority", "No-op action.", true),
	}

	r, err := Build(testPlan(), results, testContext(), []string{"process.priority", "cpu.governor"}, false, emptyPlugins(), nil)
	require.NoError(t, err)

	assert.Equal(t, types.SchemaVersion, r.SchemaVersion)
	assert.Equal(t, ModeApply, r.Mode)
	assert.Equal(t, []string{"cpu.governor", "process.priority"}, r.SelectedActionIDs)
	assert.Equal(t, Summary{Applied: 1, Skipped: 2, Unsupported: 1, Total: 3}, r.Summary)

	require.Len(t, r.Results, 3)
	assert.Equal(t, "cpu.governor", r.Results[0].ActionID)
	assert.Equal(t, "gpu.nvidia_persistence", r.Results[1].ActionID)
	assert.Equal(t, "process.priority", r.Results[2].ActionID)
}

func TestBuild_RejectsMissingSkipReason(t *testing.T) {
	t.Parallel()

	bad := appliedResult("cpu.governor")
	bad.Applied = false

	_, err := Build(testPlan(), []types.AccelerationActionResult{bad}, testContext(), nil, false, emptyPlugins(), nil)
	require.ErrorIs(t, err, types.ErrMissingSkipReason)
}

func TestBuild_WarningsUnion(t *testing.T) {
	t.Parallel()

	r, err := Build(testPlan("Plugin broken.so failed"), nil, testContext(), nil, true, emptyPlugins(),
		[]string{"Hook script post_sync.sh failed"})
	require.NoError(t, err)

	assert.Equal(t, ModeDryRun, r.Mode)
	assert.Equal(t, []string{"Plugin broken.so failed", "Hook script post_sync.sh failed"}, r.Warnings)
}

func TestBuild_PluginSummary(t *testing.T) {
	t.Parallel()

	plugins := plugin.LoadResult{
		ActionsLoaded: 2,
		LoadedFiles:   []string{"extra.so", "warmup_hook.sh"},
		Failures:      []string{},
		Warnings:      []string{},
		Hooks: plugin.HookBundle{
			PreApplyShell:  []string{"/repo/.hydra/launch.d/warmup_hook.sh"},
			PreApplyNative: []plugin.HookFunc{func(_, _ map[string]any, _ []string) error { return nil }},
		},
	}

	r, err := Build(testPlan(), nil, testContext(), nil, false, plugins, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.PluginSummary.ActionsLoaded)
	assert.Equal(t, []string{"/repo/.hydra/launch.d/warmup_hook.sh"}, r.PluginSummary.PreApplyShell)
	assert.Equal(t, []string{}, r.PluginSummary.PostApplyShell)
	assert.Equal(t, 1, r.PluginSummary.PreApplyNative)
	assert.Equal(t, 0, r.PluginSummary.PostApplyNative)
}

func TestWriteLatest_WireKeys(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	r, err := Build(testPlan(), []types.AccelerationActionResult{appliedResult("cpu.governor")},
		testContext(), []string{"cpu.governor"}, false, emptyPlugins(), nil)
	require.NoError(t, err)

	path, err := WriteLatest(root, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".hydra", "state", "launch_latest.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"schema_version", "mode", "plan", "context", "selected_action_ids",
		"summary", "results", "plugin_summary", "warnings",
	} {
		assert.Contains(t, raw, key)
	}

	pluginSummary, ok := raw["plugin_summary"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{
		"actions_loaded", "loaded_files", "failures",
		"pre_apply_shell", "post_apply_shell", "pre_apply_py_count", "post_apply_py_count",
	} {
		assert.Contains(t, pluginSummary, key)
	}

	results, ok := raw["results"].([]any)
	require.True(t, ok)
	first, ok := results[0].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, first, "skipped_reason", "nullable fields are explicit null, never omitted")
	assert.Nil(t, first["skipped_reason"])
}

func TestWriteFile_Replaces(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")
	first, err := Build(testPlan(), nil, testContext(), nil, true, emptyPlugins(), nil)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, first))

	second, err := Build(testPlan(), nil, testContext(), nil, false, emptyPlugins(), nil)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "apply", raw["mode"])
}
