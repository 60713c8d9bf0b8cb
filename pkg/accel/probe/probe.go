// Package probe inspects the host and produces the immutable execution
// context every action consumes: OS family, privilege level, vendor tool
// presence, diagnostics facts, and process environment.
package probe

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// doctorLatestName is the preferred diagnostics snapshot, written by the
// doctor collaborator under the hidden state directory.
const doctorLatestName = "doctor_latest.json"

// Detect builds the execution context for the host, rooted at cwd.
// Detection is best-effort: a missing nvidia-smi or doctor report is a
// fact about the host, not an error.
func Detect(cwd string) types.ExecutionContext {
	osName := runtime.GOOS
	if osName == "darwin" {
		osName = "macos"
	}

	_, smiErr := exec.LookPath("nvidia-smi")

	return types.ExecutionContext{
		OSName:       osName,
		IsLinux:      runtime.GOOS == "linux",
		IsWindows:    runtime.GOOS == "windows",
		IsMacOS:      runtime.GOOS == "darwin",
		UserIsRoot:   userIsRoot(),
		HasNvidiaSMI: smiErr == nil,
		DoctorFacts:  loadDoctorFacts(cwd),
		Env:          environMap(),
		Cwd:          cwd,
		RepoRoot:     cwd,
	}
}

// loadDoctorFacts reads the latest diagnostics report if one exists.
// It prefers .hydra/state/doctor_latest.json and falls back to the newest
// .hydra/reports/doctor_*.json. Any read or parse failure yields nil.
func loadDoctorFacts(cwd string) map[string]any {
	latest := filepath.Join(cwd, ".hydra", "state", doctorLatestName)
	if facts := readFactsFile(latest); facts != nil {
		return facts
	}

	reportsDir := filepath.Join(cwd, ".hydra", "reports")
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		return nil
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "doctor_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return nil
	}

	// Report names embed timestamps, so lexically last is newest.
	sort.Strings(candidates)
	return readFactsFile(filepath.Join(reportsDir, candidates[len(candidates)-1]))
}

// readFactsFile parses one JSON facts file, returning nil on any failure.
func readFactsFile(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var facts map[string]any
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil
	}
	return facts
}

// environMap converts os.Environ into a map, keeping the last value for
// duplicate keys.
func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	return env
}
