package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/config"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/logging"
)

var (
	cfgFile   string
	appConfig *config.Config

	rootCmd = &cobra.Command{
		Use:   "hydra",
		Short: "Plan and apply reversible system acceleration tweaks",
		Long: `Hydra evaluates reversible system tuning actions (CPU governor, GPU
persistence, process priority, swap pressure, file-descriptor limits),
recommends the safe subset for the active profile, and applies the selected
ones with enough captured state to undo everything.

Examples:
  hydra launch                       # Dry-run plan for the current host
  hydra launch --apply               # Apply recommended actions
  hydra launch --profile max --json  # Machine-readable report on stdout
  hydra accelerate --on              # Whole-system acceleration toggle
  hydra accelerate --off             # Restore the captured settings`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// exitError carries a specific process exit code through cobra's error
// return. The message, when set, is printed to stderr by main.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string { return e.message }

// usageErrorf builds the exit-2 error used for every command-line misuse.
func usageErrorf(format string, args ...interface{}) error {
	return &exitError{code: 2, message: fmt.Sprintf("Usage error: "+format, args...)}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/hydra/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print detection and plugin details to stderr")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress human-readable output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// initConfig loads the engine configuration and initializes logging. A
// broken config file degrades to defaults rather than blocking the run.
func initConfig() {
	var err error
	if cfgFile != "" {
		appConfig, err = config.LoadFile(cfgFile)
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: using default configuration: %v\n", err)
		appConfig = &config.Config{
			Profile: "balanced",
			Launch:  config.LaunchConfig{IncludeTimestamp: true, StateWrite: true},
			Logging: config.LoggingConfig{Level: "info"},
		}
	}

	initLogging(appConfig)
}

// initLogging wires the config file's logging section into the logging
// package. Logging failures are reported but never fatal.
func initLogging(cfg *config.Config) {
	consoleLevel := ""
	if getVerbose() {
		consoleLevel = "debug"
	}

	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		Rotation:     parseRotationConfig(cfg.Logging.Rotation),
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	}

	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
}

// parseRotationConfig converts the human-readable rotation settings into
// the logging package's byte-based form. An unparseable size falls back to
// the rotation default.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize, err := humanize.ParseBytes(rc.MaxSize)
	if err != nil {
		maxSize = 0
	}
	return logging.RotationConfig{
		MaxSize:    int64(maxSize),
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message to stderr if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// eprint prints a message to stderr.
func eprint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
