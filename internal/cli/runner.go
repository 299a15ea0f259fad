package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vk/ctwgo/internal/pathhandler"
	"github.com/vk/ctwgo/internal/runner"
)

// RunnerConfig is the parsed command line of ctwrunner.
type RunnerConfig struct {
	Runner    runner.Config
	Launcher  *runner.DriverLauncher
	LogFormat string
	LogLevel  string
}

// defaultDriver is the ctw binary installed next to the running one.
func defaultDriver() string {
	exe, err := os.Executable()
	if err != nil {
		return "ctw"
	}
	return filepath.Join(filepath.Dir(exe), "ctw")
}

// ParseRunner processes ctwrunner arguments. The first positional argument
// is the target; the remaining ones are passed to every driver phase.
func ParseRunner(args []string, output io.Writer) (*RunnerConfig, bool, error) {
	flagSet := flag.NewFlagSet("ctwrunner", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
ctwrunner - runs ctw over one target, relaunching it after every crash.

Usage:
  ctwrunner [options] TARGET [DRIVER-ARG ...]

Arguments:
  TARGET
    A class directory, a jar, or "modules" for the module image of the JDK.
  DRIVER-ARG
    Passed to every ctw phase before the compile range properties.

Options:
`)
		flagSet.PrintDefaults()
	}

	driverFlag := flagSet.String("driver", defaultDriver(), "Path to the ctw driver binary.")
	logDirFlag := flagSet.String("log-dir", ".", "Directory for the per-phase logs.")
	startFlag := flagSet.Int64("start", 1, "Index of the first class to compile.")
	stopFlag := flagSet.Int64("stop", 0, "Index of the last class to compile. 0 is no limit.")
	maxPhasesFlag := flagSet.Int("max-phases", 0, "Maximum number of phases to launch. 0 is no limit.")
	ledgerFlag := flagSet.String("ledger", "", "Ledger file used to resume an interrupted run.")
	reportFlag := flagSet.String("report", "", "Write a YAML report of the run to this file.")
	javaHomeFlag := flagSet.String("java-home", "", "JDK used to resolve the modules target. Defaults to $JAVA_HOME.")
	logFormatFlag := flagSet.String("log-format", "auto", "Log output format. Options: 'text', 'json' or 'auto'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() < 1 {
		return nil, false, usageError("missing target")
	}

	logFormat, logLevel, err := logOptions(*logFormatFlag, *logLevelFlag)
	if err != nil {
		return nil, false, err
	}

	javaHome := pathhandler.JavaHome(*javaHomeFlag)
	var driverArgs []string
	if *javaHomeFlag != "" {
		driverArgs = append(driverArgs, "-Djava.home="+*javaHomeFlag)
	}
	driverArgs = append(driverArgs, flagSet.Args()[1:]...)

	cfg := runner.Config{
		Target:     flagSet.Arg(0),
		JavaHome:   javaHome,
		LogDir:     *logDirFlag,
		StartAt:    *startFlag,
		StopAt:     *stopFlag,
		MaxPhases:  *maxPhasesFlag,
		LedgerPath: *ledgerFlag,
		ReportPath: *reportFlag,
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, usageError("%v", err)
	}

	return &RunnerConfig{
		Runner:    cfg,
		Launcher:  &runner.DriverLauncher{Driver: *driverFlag, Args: driverArgs},
		LogFormat: logFormat,
		LogLevel:  logLevel,
	}, false, nil
}
