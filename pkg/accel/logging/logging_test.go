package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/logging"
)

// TestInit tests the Init function with various configurations.
// Note: This test cannot run in parallel with other tests that use global state.
func TestInit(t *testing.T) {
	validDir := t.TempDir()
	componentsDir := t.TempDir()
	invalidDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config with defaults",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(validDir, "test.log"),
			},
			wantErr: false,
		},
		{
			name: "valid config with component overrides",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(componentsDir, "components.log"),
				Components: map[string]string{
					"planner": "debug",
					"tuner":   "warn",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: logging.Config{
				Level: "invalid",
				Path:  filepath.Join(invalidDir, "invalid.log"),
			},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(invalidDir, "component.log"),
				Components: map[string]string{"planner": "loud"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Note: No t.Parallel() - these tests modify global state

			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err == nil {
				if closeErr := logging.Close(); closeErr != nil {
					t.Errorf("Close() error = %v", closeErr)
				}
			}
		})
	}
}

func TestGet_WritesToFile(t *testing.T) {
	// No t.Parallel() - uses global state

	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "hydra.log")
	cfg := logging.Config{
		Level: "info",
		Path:  logPath,
		Components: map[string]string{
			"planner": "debug",
			"tuner":   "error",
		},
	}

	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	planner := logging.Get("planner")
	planner.Debug("plan built", "actions", 3)

	tuner := logging.Get("tuner")
	tuner.Info("this is below the tuner component level")
	tuner.Error("restore failed", "tunable", "cpu_governor")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "plan built") {
		t.Errorf("debug entry for planner component missing from log: %q", content)
	}
	if strings.Contains(content, "below the tuner component level") {
		t.Errorf("info entry should be filtered by the tuner component level")
	}
	if !strings.Contains(content, "restore failed") {
		t.Errorf("error entry missing from log: %q", content)
	}
}

func TestGet_SameLoggerInstance(t *testing.T) {
	// No t.Parallel() - uses global state

	tempDir := t.TempDir()
	if err := logging.Init(logging.Config{Level: "info", Path: filepath.Join(tempDir, "test.log")}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() {
		if err := logging.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	first := logging.Get("launch")
	second := logging.Get("launch")
	if first != second {
		t.Error("Get() should return the same logger instance for a component")
	}
}

func TestBeforeInit_Silent(t *testing.T) {
	// No t.Parallel() - uses global state

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Must not panic or write anywhere.
	logger := logging.Get("uninitialised")
	logger.Info("dropped")
	logger.Error("also dropped")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"info", logging.LevelInfo, false},
		{"warn", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"ERROR", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := logging.ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultLogPath(t *testing.T) {
	t.Parallel()

	path := logging.DefaultLogPath()
	if !strings.HasSuffix(path, filepath.Join("hydra", "hydra.log")) {
		t.Errorf("DefaultLogPath() = %q, want hydra/hydra.log suffix", path)
	}
}
