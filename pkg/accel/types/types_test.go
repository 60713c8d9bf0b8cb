package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProfile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Profile
	}{
		{"minimal", ProfileMinimal},
		{"  MAX  ", ProfileMax},
		{"Expert", ProfileExpert},
		{"balanced", ProfileBalanced},
		{"turbo", ProfileBalanced},
		{"", ProfileBalanced},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeProfile(tt.input), "input %q", tt.input)
	}
}

func TestProfileOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, ProfileExpert.AtLeast(ProfileMax))
	assert.True(t, ProfileBalanced.AtLeast(ProfileBalanced))
	assert.False(t, ProfileMinimal.AtLeast(ProfileBalanced))
	assert.Equal(t, -1, Profile("bogus").Rank())
}

func TestExecutionContext_WithProfile(t *testing.T) {
	t.Parallel()

	ctx := ExecutionContext{
		OSName:  "linux",
		IsLinux: true,
		Env:     map[string]string{"PATH": "/usr/bin"},
	}

	derived := ctx.WithProfile(ProfileMax)

	assert.Equal(t, ProfileMax, derived.Profile())
	assert.Equal(t, "/usr/bin", derived.Env["PATH"])

	// The original context must stay untouched.
	_, ok := ctx.Env[ProfileEnvVar]
	assert.False(t, ok)
	assert.Equal(t, ProfileBalanced, ctx.Profile())
}

func TestNewPlan_DeterministicWithoutTimestamp(t *testing.T) {
	t.Parallel()

	recs := []ActionDescriptor{
		{ActionID: "z.last", Category: "misc"},
		{ActionID: "a.first", Category: "cpu"},
	}

	first := NewPlan(ProfileBalanced, recs, nil, false)
	second := NewPlan(ProfileBalanced, recs, nil, false)

	require.Len(t, first.Recommendations, 2)
	assert.Equal(t, "a.first", first.Recommendations[0].ActionID)
	assert.Equal(t, "z.last", first.Recommendations[1].ActionID)
	assert.Equal(t, first.PlanID, second.PlanID)
	assert.Equal(t, first, second)
	assert.Empty(t, first.CreatedAt)
	assert.Equal(t, SchemaVersion, first.SchemaVersion)
	assert.NotNil(t, first.Warnings)
}

func TestNewPlan_HashChangesWithInputs(t *testing.T) {
	t.Parallel()

	recs := []ActionDescriptor{{ActionID: "cpu.governor"}}

	balanced := NewPlan(ProfileBalanced, recs, nil, false)
	expert := NewPlan(ProfileExpert, recs, nil, false)
	assert.NotEqual(t, balanced.PlanID, expert.PlanID)
}

func TestNewPlan_TimestampedID(t *testing.T) {
	t.Parallel()

	plan := NewPlan(ProfileBalanced, nil, []string{"warn"}, true)
	assert.NotEmpty(t, plan.CreatedAt)
	assert.Contains(t, plan.PlanID, "launch-")
	assert.Equal(t, []string{"warn"}, plan.Warnings)
}

func TestAccelerationActionResult_Validate(t *testing.T) {
	t.Parallel()

	applied := AccelerationActionResult{ActionID: "cpu.governor", Applied: true}
	require.NoError(t, applied.Validate())

	skipped := AccelerationActionResult{ActionID: "cpu.governor", Applied: false, SkippedReason: SkipReason("root required")}
	require.NoError(t, skipped.Validate())

	missing := AccelerationActionResult{ActionID: "cpu.governor", Applied: false}
	err := missing.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSkipReason)

	empty := AccelerationActionResult{ActionID: "cpu.governor", Applied: false, SkippedReason: SkipReason("")}
	assert.ErrorIs(t, empty.Validate(), ErrMissingSkipReason)
}

func TestParseCSVSet(t *testing.T) {
	t.Parallel()

	set := ParseCSVSet("GPU, cpu ,,process")
	require.NotNil(t, set)
	assert.True(t, set["gpu"])
	assert.True(t, set["cpu"])
	assert.True(t, set["process"])
	assert.Len(t, set, 3)

	assert.Nil(t, ParseCSVSet(""))
	assert.Nil(t, ParseCSVSet(" , ,"))
}

func TestSortedKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]bool{"c": true, "a": true, "b": true}))
	assert.Empty(t, SortedKeys(nil))
}
