// Package state persists the acceleration session state. The state file
// records the last toggle outcome; a missing or corrupt file means no
// session has ever been recorded and reads as inactive.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/tuner"
)

// FileName is the session state file, relative to the engine root.
const FileName = ".hydra/state/accelerate_state.json"

// Modes recorded in the session payload.
const (
	ModeOn     = "on"
	ModeOff    = "off"
	ModeDryRun = "dry-run"
)

// Payload is the persisted session record: whether acceleration is
// active, what changed, and the captured previous state that a later
// restore consumes verbatim.
type Payload struct {
	Active         bool           `json:"active"`
	Platform       string         `json:"platform"`
	Timestamp      string         `json:"timestamp"`
	Mode           string         `json:"mode,omitempty"`
	ChangesApplied []tuner.Change `json:"changes_applied"`
	PreviousState  tuner.Snapshot `json:"previous_state"`
	Failures       []string       `json:"failures"`
	Message        string         `json:"message,omitempty"`
}

// Path returns the state file location under root.
func Path(root string) string {
	return filepath.Join(root, filepath.FromSlash(FileName))
}

// UTCNow formats the current time the way session timestamps are stored.
func UTCNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Load reads the persisted session, if any. A missing file means no
// session; a corrupt file is treated the same so a damaged state never
// wedges the toggle.
func Load(root string) (*Payload, bool) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		return nil, false
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false
	}
	return &payload, true
}

// Save writes the session payload with a write-then-rename so a crash
// mid-write cannot leave a truncated state file behind.
func Save(root string, payload Payload) error {
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
