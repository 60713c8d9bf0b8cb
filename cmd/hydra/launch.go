package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/config"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/logging"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/output"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/planner"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/plugin"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/probe"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/report"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// Skip reasons surfaced in results. These strings are part of the report
// wire contract; consumers match on them.
const (
	reasonDryRun      = "Dry run - not applied"
	reasonNotSelected = "Not selected"
	reasonUnsupported = "Unsupported on this environment"
	reasonApplyPanic  = "Action apply raised an exception"
	reasonInterrupted = "Interrupted before apply"
)

const unsupportedOSWarning = "Skipped: not supported on this OS."

var launchFlags struct {
	dryRun       bool
	apply        bool
	interactive  bool
	profile      string
	only         string
	exclude      string
	jsonOutput   bool
	out          string
	noStateWrite bool
	noTimestamp  bool
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Plan and optionally apply acceleration actions",
	Long: `Launch evaluates every registered acceleration action against the current
host, renders the plan, and either stops there (dry-run, the default) or
applies the selected actions. Every run writes a schema-versioned JSON
report under .hydra/state/.`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)

	f := launchCmd.Flags()
	f.BoolVar(&launchFlags.dryRun, "dry-run", false, "plan only, do not apply actions (default)")
	f.BoolVar(&launchFlags.apply, "apply", false, "apply selected/recommended actions")
	f.BoolVar(&launchFlags.interactive, "interactive", false, "interactively choose actions before applying")
	f.StringVar(&launchFlags.profile, "profile", "", "aggressiveness profile: minimal|balanced|max|expert")
	f.StringVar(&launchFlags.only, "only", "", "comma-separated categories or action ids to include")
	f.StringVar(&launchFlags.exclude, "exclude", "", "comma-separated categories or action ids to exclude")
	f.BoolVar(&launchFlags.jsonOutput, "json", false, "print the JSON report to stdout")
	f.StringVar(&launchFlags.out, "out", "", "write the report JSON to this path")
	f.BoolVar(&launchFlags.noStateWrite, "no-state-write", false, "do not write .hydra/state/launch_latest.json")
	f.BoolVar(&launchFlags.noTimestamp, "no-timestamp", false, "derive deterministic plan ids without timestamps")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	logger := logging.Get("launch")

	if launchFlags.dryRun && launchFlags.apply {
		return usageErrorf("Cannot pass both --dry-run and --apply")
	}
	effectiveDryRun := !launchFlags.apply

	quietHuman := getQuiet() || launchFlags.jsonOutput

	only, err := parseFilterFlag("--only", launchFlags.only)
	if err != nil {
		return err
	}
	exclude, err := parseFilterFlag("--exclude", launchFlags.exclude)
	if err != nil {
		return err
	}

	profileValue := launchFlags.profile
	if profileValue == "" {
		profileValue = appConfig.Profile
	}
	profile := types.NormalizeProfile(profileValue)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	result, err := planner.New().Build(cwd, planner.Options{
		Profile:          profile,
		Only:             only,
		Exclude:          exclude,
		IncludeTimestamp: appConfig.Launch.IncludeTimestamp && !launchFlags.noTimestamp,
	})
	if err != nil {
		if errors.Is(err, planner.ErrUnknownCategory) {
			return usageErrorf("%v", err)
		}
		return err
	}

	logger.Info("plan built",
		"plan_id", result.Plan.PlanID,
		"profile", string(profile),
		"actions", len(result.Plan.Recommendations))

	if res, resErr := probe.Resources(); resErr == nil {
		printVerbose("Host resources: %d logical CPUs, %s RAM", res.CPUCores, res.HumanRAM())
	}
	printVerbose("Detected categories: %s", joinOrNone(planCategories(result.Plan)))
	printVerbose("Plugin files loaded: %s", joinOrNone(result.Plugins.LoadedFiles))
	if len(result.Plugins.Failures) > 0 {
		printVerbose("Plugin load failures: %d", len(result.Plugins.Failures))
	}

	if !result.Context.SupportedOS() {
		rep, err := report.Build(result.Plan, nil, result.Context, nil,
			effectiveDryRun, result.Plugins, []string{unsupportedOSWarning})
		if err != nil {
			return err
		}
		if err := writeLaunchReport(cwd, rep); err != nil {
			return err
		}
		if launchFlags.jsonOutput {
			return printReportJSON(rep)
		}
		if !quietHuman {
			eprint(unsupportedOSWarning)
		}
		return nil
	}

	if !quietHuman {
		output.RenderPlan(os.Stderr, result.Plan)
	}

	if effectiveDryRun {
		return finishDryRun(cwd, result, quietHuman)
	}

	if launchFlags.jsonOutput && launchFlags.interactive {
		return usageErrorf("--interactive cannot be used with --json")
	}

	var selected []string
	if launchFlags.interactive {
		ids, confirmed, err := selectActionsInteractively(result.Plan.Recommendations)
		if err != nil {
			return err
		}
		if !confirmed {
			if !quietHuman {
				eprint("Apply cancelled by user.")
			}
			return nil
		}
		selected = ids
	} else {
		selected = result.RecommendedIDs()
	}
	sort.Strings(selected)

	return applySelection(cwd, result, selected, quietHuman, logger)
}

// finishDryRun builds the dry-run report: the auto-selection plus one
// skipped result per evaluated action.
func finishDryRun(cwd string, result planner.Result, quietHuman bool) error {
	selected := result.RecommendedIDs()
	rep, err := report.Build(result.Plan, dryRunResults(result.Plan), result.Context,
		selected, true, result.Plugins, nil)
	if err != nil {
		return err
	}
	if err := writeLaunchReport(cwd, rep); err != nil {
		return err
	}
	if !quietHuman {
		output.RenderSummary(os.Stderr, rep)
	}
	if launchFlags.jsonOutput {
		return printReportJSON(rep)
	}
	return nil
}

// applySelection runs the pre hooks, applies each selected action with
// panic containment, runs the post hooks, and writes the report. An
// interrupt marks the remaining actions as skipped, still writes the
// report, and exits 130.
func applySelection(cwd string, result planner.Result, selected []string, quietHuman bool, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctxPayload := plugin.ToMap(result.Context)
	planPayload := plugin.ToMap(result.Plan)

	hookWarnings := plugin.RunShellHooks(ctx, result.Plugins.Hooks.PreApplyShell, selected)
	hookWarnings = append(hookWarnings,
		plugin.RunNativeHooks(result.Plugins.Hooks.PreApplyNative, ctxPayload, planPayload, selected)...)

	selectedSet := make(map[string]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
	}

	interrupted := false
	results := make([]types.AccelerationActionResult, 0, len(result.Evaluations))
	for _, evaluation := range result.Evaluations {
		desc := evaluation.Descriptor
		switch {
		case !selectedSet[desc.ActionID]:
			results = append(results, skippedResult(evaluation, reasonNotSelected, evaluation.Preview))
		case interrupted || ctx.Err() != nil:
			interrupted = true
			results = append(results, skippedResult(evaluation, reasonInterrupted, evaluation.Facts))
		case !desc.Supported:
			results = append(results, skippedResult(evaluation, reasonUnsupported, evaluation.Facts))
		default:
			res := applyAction(evaluation, result.Context)
			logger.Info("action apply finished",
				"action", desc.ActionID, "applied", res.Applied, "errors", len(res.Errors))
			results = append(results, res)
		}
	}

	if !interrupted {
		hookWarnings = append(hookWarnings,
			plugin.RunShellHooks(ctx, result.Plugins.Hooks.PostApplyShell, selected)...)
		hookWarnings = append(hookWarnings,
			plugin.RunNativeHooks(result.Plugins.Hooks.PostApplyNative, ctxPayload, planPayload, selected)...)
	}

	rep, err := report.Build(result.Plan, results, result.Context, selected,
		false, result.Plugins, hookWarnings)
	if err != nil {
		return err
	}
	if err := writeLaunchReport(cwd, rep); err != nil {
		return err
	}

	if !quietHuman {
		output.RenderSummary(os.Stderr, rep)
	}
	if !interrupted && rep.Summary.Applied == 0 {
		eprint("Warning: --apply completed but no actions were applied.")
	}
	if launchFlags.jsonOutput {
		if err := printReportJSON(rep); err != nil {
			return err
		}
	}

	if interrupted {
		logger.Warn("apply interrupted", "applied", rep.Summary.Applied)
		return &exitError{code: 130, message: "Interrupted"}
	}
	return nil
}

// applyAction invokes Apply with panic containment: a panicking action
// yields a skipped result carrying the panic text instead of aborting the
// whole run.
func applyAction(evaluation planner.Evaluation, ctx types.ExecutionContext) (result types.AccelerationActionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = skippedResult(evaluation, reasonApplyPanic, evaluation.Facts)
			result.Errors = []string{fmt.Sprintf("%v", r)}
		}
	}()
	return evaluation.Action.Apply(ctx)
}

func skippedResult(evaluation planner.Evaluation, reason string, after map[string]any) types.AccelerationActionResult {
	desc := evaluation.Descriptor
	return types.AccelerationActionResult{
		ActionID:      desc.ActionID,
		Title:         desc.Title,
		Supported:     desc.Supported,
		Applied:       false,
		SkippedReason: types.SkipReason(reason),
		RequiresRoot:  desc.RequiresRoot,
		Risk:          desc.Risk,
		Before:        orEmptyMap(evaluation.Facts),
		After:         orEmptyMap(after),
		Commands:      desc.Commands,
		Errors:        []string{},
		ReturnCodes:   map[string]int{},
		StdoutTail:    []string{},
		StderrTail:    []string{},
	}
}

// dryRunResults produces one result per plan row, none applied.
func dryRunResults(plan types.AccelerationPlan) []types.AccelerationActionResult {
	results := make([]types.AccelerationActionResult, 0, len(plan.Recommendations))
	for _, rec := range plan.Recommendations {
		results = append(results, types.AccelerationActionResult{
			ActionID:      rec.ActionID,
			Title:         rec.Title,
			Supported:     rec.Supported,
			Applied:       false,
			SkippedReason: types.SkipReason(reasonDryRun),
			RequiresRoot:  rec.RequiresRoot,
			Risk:          rec.Risk,
			Before:        map[string]any{},
			After:         map[string]any{},
			Commands:      rec.Commands,
			Errors:        []string{},
			ReturnCodes:   map[string]int{},
			StdoutTail:    []string{},
			StderrTail:    []string{},
		})
	}
	return results
}

// parseFilterFlag parses a comma-separated filter value. A non-empty value
// that normalizes to nothing is a usage error.
func parseFilterFlag(name, value string) (map[string]bool, error) {
	if value == "" {
		return nil, nil
	}
	parsed := types.ParseCSVSet(value)
	if parsed == nil {
		return nil, usageErrorf("Malformed %s; expected comma-separated categories", name)
	}
	return parsed, nil
}

// writeLaunchReport persists the report: the well-known latest path unless
// state writes are disabled, plus the --out copy when requested.
func writeLaunchReport(cwd string, rep report.Report) error {
	if !launchFlags.noStateWrite && appConfig.Launch.StateWrite {
		if _, err := report.WriteLatest(cwd, rep); err != nil {
			return err
		}
	}
	if launchFlags.out != "" {
		path, err := config.ExpandPath(launchFlags.out)
		if err != nil {
			return err
		}
		if err := report.WriteFile(path, rep); err != nil {
			return err
		}
	}
	return nil
}

func printReportJSON(rep report.Report) error {
	data, err := report.Encode(rep)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func planCategories(plan types.AccelerationPlan) []string {
	seen := make(map[string]bool)
	for _, rec := range plan.Recommendations {
		seen[strings.ToLower(rec.Category)] = true
	}
	return types.SortedKeys(seen)
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "<none>"
	}
	return strings.Join(items, ", ")
}
