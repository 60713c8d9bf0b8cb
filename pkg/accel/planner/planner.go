// Package planner builds the acceleration plan: it probes the host,
// assembles the action registry (built-ins plus plugins), filters for the
// active profile and category constraints, and evaluates every surviving
// action read-only.
package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/actions"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/plugin"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/probe"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/registry"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// highRiskNote explains a recommendation downgrade applied outside expert
// profile. The downgrade lives here rather than in the actions so the
// policy is centrally auditable.
const highRiskNote = "High risk action is disabled unless expert profile is used"

// ErrUnknownCategory reports an --only/--exclude token that matches no
// known action category or id. This is a usage error and propagates to
// the caller instead of being silently ignored.
var ErrUnknownCategory = errors.New("unknown category or action id")

// Options configure one plan construction.
type Options struct {
	Profile types.Profile

	// Only and Exclude are normalized (lowercased) category or exact-id
	// sets. Exclude is evaluated before Only.
	Only    map[string]bool
	Exclude map[string]bool

	// IncludeTimestamp derives the plan id from the wall clock. Without
	// it plans are fully deterministic for a fixed host state.
	IncludeTimestamp bool
}

// Evaluation is the internal record for one planned action: the live
// action handle plus every intermediate datum apply will need.
type Evaluation struct {
	Action     types.Action
	Descriptor types.ActionDescriptor
	Facts      map[string]any
	Preview    map[string]any
}

// Result bundles the plan with the evaluation records and plugin state
// that later apply and reporting stages consume.
type Result struct {
	Plan        types.AccelerationPlan
	Context     types.ExecutionContext
	Evaluations []Evaluation
	Plugins     plugin.LoadResult
}

// Builder constructs acceleration plans. The registry is owned by the
// builder and rebuilt (reset, built-ins, plugins) on every Build so
// repeated invocations cannot observe stale registrations.
type Builder struct {
	registry    *registry.Registry
	builtins    func(*registry.Registry)
	loadPlugins func(func(types.Action), string) plugin.LoadResult
}

// New returns a Builder wired to the built-in action set and the plugin
// directory loader.
func New() *Builder {
	return &Builder{
		registry:    registry.New(),
		builtins:    actions.RegisterBuiltins,
		loadPlugins: plugin.Load,
	}
}

// Build probes the host rooted at cwd and constructs a plan.
func (b *Builder) Build(cwd string, opts Options) (Result, error) {
	return b.BuildWithContext(probe.Detect(cwd), opts)
}

// BuildWithContext constructs a plan against an already-probed context.
// One broken action never aborts planning: a check or plan panic is
// contained per action and surfaces as an unsupported descriptor.
func (b *Builder) BuildWithContext(base types.ExecutionContext, opts Options) (Result, error) {
	b.registry.Reset()
	b.builtins(b.registry)
	plugins := b.loadPlugins(b.registry.Register, base.RepoRoot)

	universe := b.registry.Actions()
	if err := validateFilters(universe, opts.Only, opts.Exclude); err != nil {
		return Result{}, err
	}

	ctx := base.WithProfile(opts.Profile)
	selected := registry.Filter(universe, opts.Only, opts.Exclude, opts.Profile)

	evaluations := make([]Evaluation, 0, len(selected))
	descriptors := make([]types.ActionDescriptor, 0, len(selected))
	for _, action := range selected {
		evaluation := evaluate(action, ctx)
		evaluations = append(evaluations, evaluation)
		descriptors = append(descriptors, evaluation.Descriptor)
	}

	sort.Slice(evaluations, func(i, j int) bool {
		return evaluations[i].Descriptor.ActionID < evaluations[j].Descriptor.ActionID
	})

	return Result{
		Plan:        types.NewPlan(opts.Profile, descriptors, plugins.Warnings, opts.IncludeTimestamp),
		Context:     ctx,
		Evaluations: evaluations,
		Plugins:     plugins,
	}, nil
}

// validateFilters rejects only/exclude tokens that name neither a known
// category nor an exact action id, checked against the unfiltered action
// universe.
func validateFilters(universe []types.Action, only, exclude map[string]bool) error {
	known := make(map[string]bool, len(universe)*2)
	for _, action := range universe {
		known[strings.ToLower(action.Category())] = true
		known[strings.ToLower(action.ID())] = true
	}

	for _, set := range []map[string]bool{only, exclude} {
		for _, token := range types.SortedKeys(set) {
			if !known[token] {
				return fmt.Errorf("%w: %q", ErrUnknownCategory, token)
			}
		}
	}
	return nil
}

// evaluate runs check and plan for one action, contains panics, and
// applies the high-risk downgrade policy.
func evaluate(action types.Action, ctx types.ExecutionContext) (evaluation Evaluation) {
	evaluation = Evaluation{Action: action}

	defer func() {
		if r := recover(); r != nil {
			evaluation.Descriptor = descriptor(action, false, false, nil,
				[]string{fmt.Sprintf("action evaluation failed: %v", r)})
			evaluation.Facts = nil
			evaluation.Preview = nil
		}
	}()

	supported, facts, notes := action.Check(ctx)
	evaluation.Facts = facts

	var recommended bool
	var commands []string
	if supported {
		var preview map[string]any
		var planNotes []string
		recommended, commands, preview, planNotes = action.Plan(ctx)
		evaluation.Preview = preview
		notes = append(notes, planNotes...)
	}

	if recommended && action.Risk() == types.RiskHigh && !ctx.Profile().AtLeast(types.ProfileExpert) {
		recommended = false
		notes = append(notes, highRiskNote)
	}

	evaluation.Descriptor = descriptor(action, supported, recommended, commands, notes)
	return evaluation
}

func descriptor(action types.Action, supported, recommended bool, commands, notes []string) types.ActionDescriptor {
	if commands == nil {
		commands = []string{}
	}
	if notes == nil {
		notes = []string{}
	}
	return types.ActionDescriptor{
		ActionID:     action.ID(),
		Title:        action.Title(),
		Category:     action.Category(),
		Recommended:  recommended,
		Risk:         action.Risk(),
		RequiresRoot: action.RequiresRoot(),
		Supported:    supported,
		Why:          action.Why(),
		Commands:     commands,
		Notes:        notes,
	}
}

// RecommendedIDs returns the sorted ids of every recommended action in
// the result, the default selection for non-interactive apply.
func (r Result) RecommendedIDs() []string {
	ids := make([]string, 0, len(r.Evaluations))
	for _, evaluation := range r.Evaluations {
		if evaluation.Descriptor.Recommended {
			ids = append(ids, evaluation.Descriptor.ActionID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Evaluation returns the record for the given action id.
func (r Result) Evaluation(id string) (Evaluation, bool) {
	for _, evaluation := range r.Evaluations {
		if evaluation.Descriptor.ActionID == id {
			return evaluation, true
		}
	}
	return Evaluation{}, false
}
