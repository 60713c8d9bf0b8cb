// Package plugin discovers and loads third-party extensions from the
// .hydra/launch.d directory: shell hook scripts and native Go plugin
// modules that register extra actions or pre/post-apply callbacks.
//
// Loading is best-effort per file. A broken plugin is recorded as a
// failure warning and never aborts loading of the remaining files or the
// apply pipeline: plugin failure is an expected condition, not an
// exceptional one.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"sort"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// DirName is the plugin directory, relative to the engine root.
const DirName = ".hydra/launch.d"

// hookSuffix marks native modules that may export apply hooks in addition
// to (or instead of) actions.
const hookSuffix = "_hook.so"

// HookFunc is the signature native pre/post-apply hooks export. Hooks
// receive the serialized context, the serialized plan, and the sorted
// selected action ids. A returned error becomes a warning; it never stops
// the pipeline.
type HookFunc func(ctx map[string]any, plan map[string]any, selectedIDs []string) error

// RegisterFunc is the entry point a native plugin exports to contribute
// actions.
type RegisterFunc func(register func(types.Action))

// module is the symbol surface of an opened native plugin.
type module interface {
	Lookup(name string) (goplugin.Symbol, error)
}

// openModule opens a native plugin module. A variable so tests can
// substitute fake modules with canned symbols.
var openModule = func(path string) (module, error) {
	return goplugin.Open(path)
}

// HookBundle collects the discovered hooks by phase and kind.
type HookBundle struct {
	PreApplyShell   []string
	PostApplyShell  []string
	PreApplyNative  []HookFunc
	PostApplyNative []HookFunc
}

// LoadResult summarizes one plugin directory scan.
type LoadResult struct {
	// ActionsLoaded counts actions contributed through Register
	// callbacks across all modules.
	ActionsLoaded int

	Hooks HookBundle

	// Warnings holds every per-file problem, including all Failures.
	Warnings []string

	// LoadedFiles names the recognized extension files, sorted.
	LoadedFiles []string

	// Failures names files that could not be loaded, sorted.
	Failures []string
}

// Dir returns the plugin directory under root.
func Dir(root string) string {
	return filepath.Join(root, filepath.FromSlash(DirName))
}

// Load scans the plugin directory and merges discovered actions into the
// caller's registry via register. A missing directory is an empty result,
// not an error.
func Load(register func(types.Action), root string) LoadResult {
	result := LoadResult{
		Warnings:    []string{},
		LoadedFiles: []string{},
		Failures:    []string{},
	}

	entries, err := os.ReadDir(Dir(root))
	if err != nil {
		return result
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(Dir(root), name)
		switch {
		case strings.HasSuffix(name, ".sh"):
			result.LoadedFiles = append(result.LoadedFiles, name)
			stem := strings.TrimSuffix(name, ".sh")
			if strings.Contains(stem, "post") {
				result.Hooks.PostApplyShell = append(result.Hooks.PostApplyShell, path)
			} else {
				result.Hooks.PreApplyShell = append(result.Hooks.PreApplyShell, path)
			}

		case strings.HasSuffix(name, ".so"):
			result.LoadedFiles = append(result.LoadedFiles, name)
			if err := loadNative(path, name, register, &result); err != nil {
				message := fmt.Sprintf("Plugin load failed for %s: %v", name, err)
				result.Warnings = append(result.Warnings, message)
				result.Failures = append(result.Failures, message)
			}

		default:
			// Not an extension point; ignored.
		}
	}

	sort.Strings(result.LoadedFiles)
	sort.Strings(result.Failures)
	return result
}

// loadNative opens one Go plugin module, invokes its Register entry point
// when present, and collects hook exports for *_hook.so modules. Panics
// in the module's Register are converted into errors.
func loadNative(path, name string, register func(types.Action), result *LoadResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	module, err := openModule(path)
	if err != nil {
		return err
	}

	if sym, lookupErr := module.Lookup("Register"); lookupErr == nil {
		registerFn, ok := sym.(func(func(types.Action)))
		if !ok {
			return fmt.Errorf("Register has wrong signature %T", sym)
		}

		before := result.ActionsLoaded
		registerFn(func(action types.Action) {
			register(action)
			result.ActionsLoaded++
		})
		if result.ActionsLoaded == before {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Plugin %s Register() did not add actions", name))
		}
	}

	if !strings.HasSuffix(name, hookSuffix) {
		return nil
	}

	if sym, lookupErr := module.Lookup("PreApply"); lookupErr == nil {
		if hook, ok := sym.(func(map[string]any, map[string]any, []string) error); ok {
			result.Hooks.PreApplyNative = append(result.Hooks.PreApplyNative, hook)
		}
	}
	if sym, lookupErr := module.Lookup("PostApply"); lookupErr == nil {
		if hook, ok := sym.(func(map[string]any, map[string]any, []string) error); ok {
			result.Hooks.PostApplyNative = append(result.Hooks.PostApplyNative, hook)
		}
	}
	return nil
}
