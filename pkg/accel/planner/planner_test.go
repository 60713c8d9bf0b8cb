package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/plugin"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/registry"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

type stubAction struct {
	id          string
	category    string
	risk        types.Risk
	profileMin  types.Profile
	supported   bool
	recommended bool
	panics      bool
}

func (s *stubAction) ID() string { return s.id }

func (s *stubAction) Title() string { return "Stub " + s.id }

func (s *stubAction) Category() string { return s.category }

func (s *stubAction) Why() string { return "stub rationale" }

func (s *stubAction) Risk() types.Risk { return s.risk }

func (s *stubAction) RequiresRoot() bool { return false }

func (s *stubAction) Platforms() []string { return []string{"linux", "windows", "macos"} }

func (s *stubAction) ProfileMin() types.Profile { return s.profileMin }

func (s *stubAction) Check(types.ExecutionContext) (bool, map[string]any, []string) {
	if s.panics {
		panic("sysfs read blew up")
	}
	return s.supported, map[string]any{"stub": true}, nil
}

func (s *stubAction) Plan(types.ExecutionContext) (bool, []string, map[string]any, []string) {
	return s.recommended, []string{"stub-cmd " + s.id}, map[string]any{"target": "on"}, nil
}

func (s *stubAction) Apply(types.ExecutionContext) types.AccelerationActionResult {
	return types.AccelerationActionResult{ActionID: s.id, Applied: true}
}

// testBuilder wires a Builder to fixed stub actions and a no-op plugin
// loader.
func testBuilder(stubs ...types.Action) *Builder {
	b := New()
	b.builtins = func(r *registry.Registry) {
		for _, stub := range stubs {
			r.Register(stub)
		}
	}
	b.loadPlugins = func(func(types.Action), string) plugin.LoadResult {
		return plugin.LoadResult{Warnings: []string{}, LoadedFiles: []string{}, Failures: []string{}}
	}
	return b
}

func testContext() types.ExecutionContext {
	return types.ExecutionContext{
		OSName:  "linux",
		IsLinux: true,
		Env:     map[string]string{},
	}
}

func TestBuild_PanickingActionIsContained(t *testing.T) {
	t.Parallel()

	b := testBuilder(
		&stubAction{id: "cpu.broken", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, panics: true},
		&stubAction{id: "cpu.fine", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true, recommended: true},
	)

	result, err := b.BuildWithContext(testContext(), Options{Profile: types.ProfileBalanced})
	require.NoError(t, err)
	require.Len(t, result.Plan.Recommendations, 2)

	broken := result.Plan.Recommendations[0]
	assert.Equal(t, "cpu.broken", broken.ActionID)
	assert.False(t, broken.Supported)
	assert.False(t, broken.Recommended)
	require.Len(t, broken.Notes, 1)
	assert.Contains(t, broken.Notes[0], "sysfs read blew up")

	fine := result.Plan.Recommendations[1]
	assert.Equal(t, "cpu.fine", fine.ActionID)
	assert.True(t, fine.Recommended)
}

func TestBuild_HighRiskDowngradeOutsideExpert(t *testing.T) {
	t.Parallel()

	newBuilder := func() *Builder {
		return testBuilder(&stubAction{
			id: "cpu.volatile", category: "cpu",
			risk: types.RiskHigh, profileMin: types.ProfileMinimal,
			supported: true, recommended: true,
		})
	}

	result, err := newBuilder().BuildWithContext(testContext(), Options{Profile: types.ProfileMax})
	require.NoError(t, err)
	require.Len(t, result.Plan.Recommendations, 1)
	assert.False(t, result.Plan.Recommendations[0].Recommended)
	assert.Contains(t, result.Plan.Recommendations[0].Notes,
		"High risk action is disabled unless expert profile is used")

	result, err = newBuilder().BuildWithContext(testContext(), Options{Profile: types.ProfileExpert})
	require.NoError(t, err)
	assert.True(t, result.Plan.Recommendations[0].Recommended)
}

func TestBuild_DeterministicWithoutTimestamp(t *testing.T) {
	t.Parallel()

	newBuilder := func() *Builder {
		return testBuilder(
			&stubAction{id: "gpu.one", category: "gpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true, recommended: true},
			&stubAction{id: "cpu.two", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true},
		)
	}
	opts := Options{Profile: types.ProfileBalanced}

	first, err := newBuilder().BuildWithContext(testContext(), opts)
	require.NoError(t, err)
	second, err := newBuilder().BuildWithContext(testContext(), opts)
	require.NoError(t, err)

	assert.Equal(t, first.Plan, second.Plan)
	assert.Empty(t, first.Plan.CreatedAt)
	assert.Equal(t, "cpu.two", first.Plan.Recommendations[0].ActionID)
}

func TestBuild_UnknownFilterTokenRejected(t *testing.T) {
	t.Parallel()

	b := testBuilder(&stubAction{id: "cpu.one", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true})

	_, err := b.BuildWithContext(testContext(), Options{
		Profile: types.ProfileBalanced,
		Only:    map[string]bool{"network": true},
	})
	require.ErrorIs(t, err, ErrUnknownCategory)
	assert.Contains(t, err.Error(), "network")

	_, err = b.BuildWithContext(testContext(), Options{
		Profile: types.ProfileBalanced,
		Exclude: map[string]bool{"cpu.one": true},
	})
	require.NoError(t, err, "exact ids are valid filter tokens")
}

func TestBuild_FiltersApply(t *testing.T) {
	t.Parallel()

	b := testBuilder(
		&stubAction{id: "cpu.one", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true, recommended: true},
		&stubAction{id: "gpu.two", category: "gpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true, recommended: true},
		&stubAction{id: "cpu.expert", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileExpert, supported: true},
	)

	result, err := b.BuildWithContext(testContext(), Options{
		Profile: types.ProfileBalanced,
		Exclude: map[string]bool{"gpu": true},
	})
	require.NoError(t, err)
	require.Len(t, result.Plan.Recommendations, 1)
	assert.Equal(t, "cpu.one", result.Plan.Recommendations[0].ActionID)
}

func TestBuild_PluginWarningsReachPlan(t *testing.T) {
	t.Parallel()

	b := testBuilder(&stubAction{id: "cpu.one", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true})
	b.loadPlugins = func(func(types.Action), string) plugin.LoadResult {
		return plugin.LoadResult{
			Warnings:    []string{"Plugin noisy.so Register() did not add actions"},
			LoadedFiles: []string{"noisy.so"},
			Failures:    []string{},
		}
	}

	result, err := b.BuildWithContext(testContext(), Options{Profile: types.ProfileBalanced})
	require.NoError(t, err)
	assert.Equal(t, []string{"Plugin noisy.so Register() did not add actions"}, result.Plan.Warnings)
	assert.Equal(t, []string{"noisy.so"}, result.Plugins.LoadedFiles)
}

func TestResult_RecommendedIDsAndLookup(t *testing.T) {
	t.Parallel()

	b := testBuilder(
		&stubAction{id: "gpu.two", category: "gpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true, recommended: true},
		&stubAction{id: "cpu.one", category: "cpu", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true, recommended: true},
		&stubAction{id: "process.three", category: "process", risk: types.RiskLow, profileMin: types.ProfileMinimal, supported: true},
	)

	result, err := b.BuildWithContext(testContext(), Options{Profile: types.ProfileBalanced})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu.one", "gpu.two"}, result.RecommendedIDs())

	evaluation, ok := result.Evaluation("process.three")
	require.True(t, ok)
	assert.Equal(t, "process.three", evaluation.Descriptor.ActionID)

	_, ok = result.Evaluation("missing.id")
	assert.False(t, ok)
}
