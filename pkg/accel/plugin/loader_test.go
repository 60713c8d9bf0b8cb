package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	goplugin "plugin"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

func noRegister(types.Action) {}

// stubAction is the minimal action a fake native module contributes.
type stubAction struct{}

func (stubAction) ID() string       { return "stub.extension" }
func (stubAction) Title() string    { return "Stub Extension" }
func (stubAction) Category() string { return "test" }
func (stubAction) Why() string      { return "testing" }

func (stubAction) Risk() types.Risk          { return types.RiskLow }
func (stubAction) RequiresRoot() bool        { return false }
func (stubAction) Platforms() []string       { return []string{"linux"} }
func (stubAction) ProfileMin() types.Profile { return types.ProfileMinimal }

func (stubAction) Check(types.ExecutionContext) (bool, map[string]any, []string) {
	return true, map[string]any{}, nil
}

func (stubAction) Plan(types.ExecutionContext) (bool, []string, map[string]any, []string) {
	return false, nil, nil, nil
}

func (stubAction) Apply(types.ExecutionContext) types.AccelerationActionResult {
	return types.AccelerationActionResult{ActionID: "stub.extension"}
}

// fakeModule serves canned symbols instead of a real shared object.
type fakeModule struct {
	symbols map[string]any
}

func (m fakeModule) Lookup(name string) (goplugin.Symbol, error) {
	sym, ok := m.symbols[name]
	if !ok {
		return nil, errors.New("symbol not found: " + name)
	}
	return sym, nil
}

// withFakeModules swaps the module opener for the test's lifetime. Tests
// using it must not run in parallel.
func withFakeModules(t *testing.T, modules map[string]fakeModule) {
	t.Helper()
	original := openModule
	openModule = func(path string) (module, error) {
		m, ok := modules[filepath.Base(path)]
		if !ok {
			return nil, errors.New("cannot open " + path)
		}
		return m, nil
	}
	t.Cleanup(func() { openModule = original })
}

// writePluginFile drops a file into root's plugin directory.
func writePluginFile(t *testing.T, root, name, content string) string {
	t.Helper()
	dir := Dir(root)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func TestLoad_MissingDirectory(t *testing.T) {
	t.Parallel()

	result := Load(noRegister, t.TempDir())
	assert.Zero(t, result.ActionsLoaded)
	assert.Empty(t, result.LoadedFiles)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Failures)
}

func TestLoad_ClassifiesShellHooks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	warmup := writePluginFile(t, root, "warmup_hook.sh", "#!/bin/sh\n")
	cleanup := writePluginFile(t, root, "post_cleanup.sh", "#!/bin/sh\n")
	writePluginFile(t, root, "notes.txt", "ignored")

	result := Load(noRegister, root)
	assert.Equal(t, []string{warmup}, result.Hooks.PreApplyShell)
	assert.Equal(t, []string{cleanup}, result.Hooks.PostApplyShell)
	assert.Equal(t, []string{"post_cleanup.sh", "warmup_hook.sh"}, result.LoadedFiles)
	assert.Empty(t, result.Failures)
}

func TestLoad_BrokenNativeModuleIsIsolated(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writePluginFile(t, root, "broken.so", "not an ELF shared object")
	writePluginFile(t, root, "warmup.sh", "#!/bin/sh\n")

	result := Load(noRegister, root)
	assert.Equal(t, []string{"broken.so", "warmup.sh"}, result.LoadedFiles)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "broken.so")
	assert.Equal(t, result.Failures, result.Warnings)
	assert.Len(t, result.Hooks.PreApplyShell, 1)
	assert.Zero(t, result.ActionsLoaded)
}

func TestLoad_RegisterAddingNoActionsWarns(t *testing.T) {
	// No t.Parallel() - swaps the module opener.
	root := t.TempDir()
	writePluginFile(t, root, "noop.so", "")
	withFakeModules(t, map[string]fakeModule{
		"noop.so": {symbols: map[string]any{
			"Register": func(func(types.Action)) {},
		}},
	})

	result := Load(noRegister, root)
	assert.Zero(t, result.ActionsLoaded)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Plugin noop.so Register() did not add actions", result.Warnings[0])
}

func TestLoad_RegisterWrongSignatureIsFailure(t *testing.T) {
	// No t.Parallel() - swaps the module opener.
	root := t.TempDir()
	writePluginFile(t, root, "bad.so", "")
	withFakeModules(t, map[string]fakeModule{
		"bad.so": {symbols: map[string]any{
			"Register": func() {},
		}},
	})

	result := Load(noRegister, root)
	assert.Zero(t, result.ActionsLoaded)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "bad.so")
	assert.Contains(t, result.Failures[0], "wrong signature")
	assert.Equal(t, result.Failures, result.Warnings)
}

func TestLoad_CountsRegisteredActions(t *testing.T) {
	// No t.Parallel() - swaps the module opener.
	root := t.TempDir()
	writePluginFile(t, root, "extra.so", "")
	withFakeModules(t, map[string]fakeModule{
		"extra.so": {symbols: map[string]any{
			"Register": func(register func(types.Action)) {
				register(stubAction{})
				register(stubAction{})
			},
		}},
	})

	var seen []string
	result := Load(func(a types.Action) { seen = append(seen, a.ID()) }, root)
	assert.Equal(t, 2, result.ActionsLoaded)
	assert.Equal(t, []string{"stub.extension", "stub.extension"}, seen)
	assert.Empty(t, result.Warnings)
}

func TestLoad_HookModuleCollectsNativeHooks(t *testing.T) {
	// No t.Parallel() - swaps the module opener.
	hook := func(map[string]any, map[string]any, []string) error { return nil }

	root := t.TempDir()
	writePluginFile(t, root, "metrics_hook.so", "")
	writePluginFile(t, root, "plain.so", "")
	withFakeModules(t, map[string]fakeModule{
		// Hook symbols are only honored on *_hook.so modules.
		"metrics_hook.so": {symbols: map[string]any{
			"Register":  func(register func(types.Action)) { register(stubAction{}) },
			"PreApply":  hook,
			"PostApply": hook,
		}},
		"plain.so": {symbols: map[string]any{
			"Register": func(register func(types.Action)) { register(stubAction{}) },
			"PreApply": hook,
		}},
	})

	result := Load(noRegister, root)
	assert.Equal(t, 2, result.ActionsLoaded)
	assert.Len(t, result.Hooks.PreApplyNative, 1)
	assert.Len(t, result.Hooks.PostApplyNative, 1)
	assert.Empty(t, result.Warnings)
}

func TestLoad_HookModuleIgnoresWrongHookSignature(t *testing.T) {
	// No t.Parallel() - swaps the module opener.
	root := t.TempDir()
	writePluginFile(t, root, "odd_hook.so", "")
	withFakeModules(t, map[string]fakeModule{
		"odd_hook.so": {symbols: map[string]any{
			"PreApply": func() {},
		}},
	})

	result := Load(noRegister, root)
	assert.Empty(t, result.Hooks.PreApplyNative)
	assert.Empty(t, result.Failures)
}

func TestRunShellHooks_PassesSelectedIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "seen")
	script := filepath.Join(dir, "hook.sh")
	require.NoError(t, os.WriteFile(script,
		[]byte("#!/bin/sh\nprintf '%s' \"$"+SelectedIDsEnvVar+"\" > "+out+"\n"), 0o755))

	warnings := RunShellHooks(context.Background(), []string{script},
		[]string{"cpu.governor", "gpu.nvidia_persistence"})
	assert.Empty(t, warnings)

	seen, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "cpu.governor,gpu.nvidia_persistence", string(seen))
}

func TestRunShellHooks_NonZeroExitBecomesWarning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	failing := filepath.Join(dir, "fail.sh")
	require.NoError(t, os.WriteFile(failing, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0o755))
	passing := filepath.Join(dir, "pass.sh")
	require.NoError(t, os.WriteFile(passing, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	warnings := RunShellHooks(context.Background(), []string{failing, passing}, nil)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "fail.sh")
	assert.Contains(t, warnings[0], "boom")
}

func TestRunNativeHooks_CollectsErrorsAndPanics(t *testing.T) {
	t.Parallel()

	var called []string
	hooks := []HookFunc{
		func(_, _ map[string]any, _ []string) error {
			called = append(called, "ok")
			return nil
		},
		func(_, _ map[string]any, _ []string) error {
			return errors.New("hook rejected plan")
		},
		func(_, _ map[string]any, _ []string) error {
			panic("unexpected state")
		},
		func(_, _ map[string]any, _ []string) error {
			called = append(called, "after")
			return nil
		},
	}

	warnings := RunNativeHooks(hooks, map[string]any{}, map[string]any{}, []string{"cpu.governor"})
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "hook rejected plan")
	assert.Contains(t, warnings[1], "panicked")
	assert.Equal(t, []string{"ok", "after"}, called)
}

func TestToMap(t *testing.T) {
	t.Parallel()

	ctx := types.ExecutionContext{OSName: "linux", IsLinux: true}
	m := ToMap(ctx)
	assert.Equal(t, "linux", m["os_name"])
	assert.Equal(t, true, m["is_linux"])

	assert.Empty(t, ToMap(make(chan int)))
}

func TestHookScriptNamesClassifyByStem(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	// "post" anywhere in the stem marks a post-apply hook.
	writePluginFile(t, root, "compost.sh", "#!/bin/sh\n")
	writePluginFile(t, root, "setup.sh", "#!/bin/sh\n")

	result := Load(noRegister, root)
	require.Len(t, result.Hooks.PostApplyShell, 1)
	assert.True(t, strings.HasSuffix(result.Hooks.PostApplyShell[0], "compost.sh"))
	require.Len(t, result.Hooks.PreApplyShell, 1)
	assert.True(t, strings.HasSuffix(result.Hooks.PreApplyShell[0], "setup.sh"))
}
