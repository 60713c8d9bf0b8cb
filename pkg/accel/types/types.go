// Package types provides core data types for the acceleration action engine.
// It defines the execution context probed from the host, the Action contract
// implemented by every tunable, and the serializable plan and result
// structures that form the engine's JSON wire contract.
package types

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SchemaVersion identifies the report and plan wire format.
// Consumers (the launcher wrap mode, status displays) match on this value.
const SchemaVersion = "launch.v1"

// ProfileEnvVar carries the active profile into action check/plan calls
// through the derived execution context.
const ProfileEnvVar = "ACCELERATE_PROFILE"

// Profile is an operator-selected aggressiveness level. Profiles form a
// total order; an action is only considered when its minimum profile rank
// does not exceed the active profile's rank.
type Profile string

// Profiles from least to most aggressive.
const (
	ProfileMinimal  Profile = "minimal"
	ProfileBalanced Profile = "balanced"
	ProfileMax      Profile = "max"
	ProfileExpert   Profile = "expert"
)

// profileOrder maps each profile to its rank.
var profileOrder = map[Profile]int{
	ProfileMinimal:  0,
	ProfileBalanced: 1,
	ProfileMax:      2,
	ProfileExpert:   3,
}

// NormalizeProfile parses a profile string, lowercasing and trimming it.
// Unrecognized values normalize to ProfileBalanced.
func NormalizeProfile(s string) Profile {
	candidate := Profile(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profileOrder[candidate]; !ok {
		return ProfileBalanced
	}
	return candidate
}

// Rank returns the profile's position in the order, or -1 for unknown values.
func (p Profile) Rank() int {
	rank, ok := profileOrder[p]
	if !ok {
		return -1
	}
	return rank
}

// AtLeast reports whether p ranks at or above minimum.
func (p Profile) AtLeast(minimum Profile) bool {
	return p.Rank() >= minimum.Rank()
}

// Risk classifies how invasive an action is.
type Risk string

// Risk tiers.
const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// ExecutionContext is an immutable snapshot of the host taken once per
// invocation. Actions receive it on every call and must not retain or
// mutate it; WithProfile derives the copy handed to check/plan so actions
// can read the active profile without a global.
type ExecutionContext struct {
	OSName     string `json:"os_name"`
	IsLinux    bool   `json:"is_linux"`
	IsWindows  bool   `json:"is_windows"`
	IsMacOS    bool   `json:"is_macos"`
	UserIsRoot bool   `json:"user_is_root"`

	// HasNvidiaSMI reports whether the nvidia-smi management tool was
	// found on PATH at probe time.
	HasNvidiaSMI bool `json:"has_nvidia_smi"`

	// DoctorFacts is a free-form fact bag from the diagnostics
	// collaborator. Nil when no doctor report was found or it failed
	// to parse.
	DoctorFacts map[string]any `json:"doctor_facts"`

	Env map[string]string `json:"env"`
	Cwd string            `json:"cwd"`

	// RepoRoot is the directory the hidden state tree lives under.
	RepoRoot string `json:"repo_root"`
}

// WithProfile returns a copy of the context whose environment carries the
// active profile under ProfileEnvVar. The receiver is left untouched.
func (c ExecutionContext) WithProfile(profile Profile) ExecutionContext {
	derived := c
	derived.Env = make(map[string]string, len(c.Env)+1)
	for k, v := range c.Env {
		derived.Env[k] = v
	}
	derived.Env[ProfileEnvVar] = string(profile)
	return derived
}

// Profile reads the active profile from the context environment,
// normalizing unknown values to balanced.
func (c ExecutionContext) Profile() Profile {
	return NormalizeProfile(c.Env[ProfileEnvVar])
}

// SupportedOS reports whether the host OS is one the engine recognizes.
func (c ExecutionContext) SupportedOS() bool {
	return c.IsLinux || c.IsWindows || c.IsMacOS
}

// Action is one independently evaluable and applicable system tunable.
// Implementations are stateless aside from static metadata: every call
// reads host state fresh.
type Action interface {
	// ID returns the stable identifier actions are registered and
	// sorted by.
	ID() string

	// Title returns the human-readable display name.
	Title() string

	// Category returns the grouping used by --only/--exclude filters
	// (cpu, gpu, process, ...).
	Category() string

	// Why returns the human-readable rationale for the change.
	Why() string

	// Risk returns the action's risk tier.
	Risk() Risk

	// RequiresRoot reports whether apply needs elevated privileges.
	RequiresRoot() bool

	// Platforms returns the OS families the action supports.
	Platforms() []string

	// ProfileMin returns the minimum profile at which the action is
	// even considered.
	ProfileMin() Profile

	// Check is a read-only probe of the host state relevant to this
	// tunable. It must never mutate. supported=false means the
	// underlying tool or path is absent; notes explain why.
	Check(ctx ExecutionContext) (supported bool, facts map[string]any, notes []string)

	// Plan decides whether to recommend the change under the active
	// profile, the shell-equivalent commands representing it, and a
	// preview of the target state. It must be deterministic for
	// identical inputs.
	Plan(ctx ExecutionContext) (recommended bool, commands []string, preview map[string]any, notes []string)

	// Apply performs the mutation and reports the outcome. Unsupported
	// host, missing privilege, and command failure are three distinct
	// outcomes and are never coalesced.
	Apply(ctx ExecutionContext) AccelerationActionResult
}

// Rollbacker is implemented by actions that can reverse their own apply.
// The capture/restore engine consults it; the plan builder does not.
type Rollbacker interface {
	Rollback(ctx ExecutionContext) (AccelerationActionResult, bool)
}

// PlatformSupported reports whether the action's platform list covers the
// context's OS family.
func PlatformSupported(a Action, ctx ExecutionContext) bool {
	for _, platform := range a.Platforms() {
		switch platform {
		case "linux":
			if ctx.IsLinux {
				return true
			}
		case "windows":
			if ctx.IsWindows {
				return true
			}
		case "macos":
			if ctx.IsMacOS {
				return true
			}
		}
	}
	return false
}

// ActionDescriptor is the serializable snapshot of one action's evaluation
// for a given run. The plan builder produces it; reporting and the
// interactive selector consume it.
type ActionDescriptor struct {
	ActionID     string   `json:"action_id"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Recommended  bool     `json:"recommended"`
	Risk         Risk     `json:"risk"`
	RequiresRoot bool     `json:"requires_root"`
	Supported    bool     `json:"supported"`
	Why          string   `json:"why"`
	Commands     []string `json:"commands"`
	Notes        []string `json:"notes"`
}

// AccelerationPlan is the read-only evaluation of all eligible actions
// before any mutation. Recommendations are always sorted by action id so
// plan JSON is diff-stable for automation.
type AccelerationPlan struct {
	SchemaVersion   string             `json:"schema_version"`
	PlanID          string             `json:"plan_id"`
	CreatedAt       string             `json:"created_at"`
	Profile         Profile            `json:"profile"`
	Recommendations []ActionDescriptor `json:"recommendations"`
	Warnings        []string           `json:"warnings"`
}

// NewPlan assembles a plan from descriptors, sorting them by action id.
// With includeTimestamp the plan id derives from the wall clock; without
// it the id is a stable hash of the profile plus sorted action ids, and
// created_at is empty, so identical inputs produce identical plans.
func NewPlan(profile Profile, recommendations []ActionDescriptor, warnings []string, includeTimestamp bool) AccelerationPlan {
	recs := make([]ActionDescriptor, len(recommendations))
	copy(recs, recommendations)
	sort.Slice(recs, func(i, j int) bool { return recs[i].ActionID < recs[j].ActionID })

	var planID, createdAt string
	if includeTimestamp {
		now := time.Now().UTC()
		createdAt = now.Format(time.RFC3339)
		planID = "launch-" + now.Format("20060102150405")
	} else {
		parts := make([]string, 0, len(recs)+1)
		parts = append(parts, string(profile))
		for _, rec := range recs {
			parts = append(parts, rec.ActionID)
		}
		sum := sha1.Sum([]byte(strings.Join(parts, "|")))
		planID = "launch-" + hex.EncodeToString(sum[:])[:12]
	}

	if warnings == nil {
		warnings = []string{}
	}

	return AccelerationPlan{
		SchemaVersion:   SchemaVersion,
		PlanID:          planID,
		CreatedAt:       createdAt,
		Profile:         profile,
		Recommendations: recs,
		Warnings:        warnings,
	}
}

// ErrMissingSkipReason indicates a result that claims applied=false without
// saying why. Every skipped or failed action must carry a specific reason.
var ErrMissingSkipReason = errors.New("skipped_reason is required when applied is false")

// AccelerationActionResult is the outcome of invoking Apply on one action.
// SkippedReason is nullable in JSON but mandatory whenever Applied is false.
type AccelerationActionResult struct {
	ActionID      string         `json:"action_id"`
	Title         string         `json:"title"`
	Supported     bool           `json:"supported"`
	Applied       bool           `json:"applied"`
	SkippedReason *string        `json:"skipped_reason"`
	RequiresRoot  bool           `json:"requires_root"`
	Risk          Risk           `json:"risk"`
	Before        map[string]any `json:"before"`
	After         map[string]any `json:"after"`
	Commands      []string       `json:"commands"`
	Errors        []string       `json:"errors"`
	ReturnCodes   map[string]int `json:"returncodes"`
	StdoutTail    []string       `json:"stdout_tail"`
	StderrTail    []string       `json:"stderr_tail"`
}

// Validate enforces the result invariant: applied=false requires a
// non-empty skip reason.
func (r *AccelerationActionResult) Validate() error {
	if !r.Applied && (r.SkippedReason == nil || *r.SkippedReason == "") {
		return fmt.Errorf("action %s: %w", r.ActionID, ErrMissingSkipReason)
	}
	return nil
}

// SkipReason wraps a reason string for the nullable skipped_reason field.
func SkipReason(reason string) *string {
	return &reason
}

// ParseCSVSet splits a comma-separated filter value into a normalized
// (lowercased, trimmed) set. Empty input yields nil.
func ParseCSVSet(value string) map[string]bool {
	tokens := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			tokens[part] = true
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// SortedKeys returns the set's members in ascending order.
func SortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
