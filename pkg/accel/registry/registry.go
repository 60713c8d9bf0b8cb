// Package registry provides the in-memory catalogue of acceleration
// actions. A Registry is an explicit instance handed to the plan builder,
// not process-wide state; Reset exists for test isolation.
package registry

import (
	"sort"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// Registry holds actions keyed by their stable id.
type Registry struct {
	actions map[string]types.Action
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{actions: make(map[string]types.Action)}
}

// Register inserts an action by id, overwriting any prior registration
// with the same id. Plugins use the overwrite to replace built-ins.
func (r *Registry) Register(action types.Action) {
	r.actions[action.ID()] = action
}

// Actions returns all registered actions sorted by id. The ordering is a
// contract: automation diffs plan JSON, so enumeration must be stable.
func (r *Registry) Actions() []types.Action {
	ids := make([]string, 0, len(r.actions))
	for id := range r.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]types.Action, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.actions[id])
	}
	return out
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	return len(r.actions)
}

// Reset removes all registrations.
func (r *Registry) Reset() {
	r.actions = make(map[string]types.Action)
}

// Filter drops actions according to the active profile and the only/exclude
// sets. An action survives when:
//   - its minimum profile rank does not exceed the active profile's rank,
//   - its category is not in exclude,
//   - only is empty, or contains its category or its exact id.
//
// Exclude is evaluated before only. Category and id matching is
// case-insensitive; the sets are expected to be pre-normalized
// (types.ParseCSVSet output). Validation of unknown categories happens at
// the caller, against an unfiltered probe run. The returned slice is
// sorted by id.
func Filter(actions []types.Action, only, exclude map[string]bool, profile types.Profile) []types.Action {
	requiredRank := profile.Rank()
	if requiredRank < 0 {
		requiredRank = types.ProfileBalanced.Rank()
	}

	filtered := make([]types.Action, 0, len(actions))
	for _, action := range actions {
		category := strings.ToLower(action.Category())

		minRank := action.ProfileMin().Rank()
		if minRank < 0 {
			minRank = types.ProfileMinimal.Rank()
		}
		if minRank > requiredRank {
			continue
		}

		if exclude != nil && exclude[category] {
			continue
		}

		if only != nil && !only[category] && !only[strings.ToLower(action.ID())] {
			continue
		}

		filtered = append(filtered, action)
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID() < filtered[j].ID() })
	return filtered
}
