package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/ctwgo/internal/app"
	"github.com/vk/ctwgo/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// SplitProperties separates "-Dname=value" arguments from the rest, keeping
// the order of both.
func SplitProperties(args []string) (props map[string]string, rest []string) {
	props = map[string]string{}
	for i, arg := range args {
		if arg == "--" {
			return props, append(rest, args[i:]...)
		}
		if name, value, ok := config.ParseProperty(arg); ok {
			props[name] = value
			continue
		}
		rest = append(rest, arg)
	}
	return props, rest
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Settings are layered: defaults, then -config, then environment, then
// -D properties.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("ctw", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprintf(output, `
ctw - compiles every method of every class reachable from the given paths.

Usage:
  ctw [options] [-Dproperty=value ...] [PATH ...]

Arguments:
  PATH
    A class directory, a .jar/.zip archive, a .lst class list, a jimage
    "modules" file, or DIR/* for every jar in DIR. Without paths the boot
    class path is compiled.

Properties:
  %s

Options:
`, strings.Join(config.Names(), "\n  "))
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL settings file.")
	logFormatFlag := flagSet.String("log-format", "auto", "Log output format. Options: 'text', 'json' or 'auto'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")

	props, rest := SplitProperties(args)
	if err := flagSet.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.", "properties", len(props), "inputs", flagSet.NArg())

	logFormat, logLevel, err := logOptions(*logFormatFlag, *logLevelFlag)
	if err != nil {
		return nil, false, err
	}

	settings := config.Default()
	if *configFlag != "" {
		if err := config.LoadFile(context.Background(), *configFlag, settings); err != nil {
			return nil, false, usageError("%v", err)
		}
	}
	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		return nil, false, usageError("%v", err)
	}
	if err := settings.ApplyProperties(props); err != nil {
		return nil, false, usageError("%v", err)
	}
	slog.Debug("CLI parameter validation complete.")

	cfg, err := app.NewConfig(app.Config{
		Inputs:     flagSet.Args(),
		Settings:   settings,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
		StatusPort: *statusPortFlag,
	})
	if err != nil {
		return nil, false, usageError("%v", err)
	}

	slog.Debug("CLI parser finished successfully.", "inputs", cfg.Inputs)
	return cfg, false, nil
}

// logOptions normalizes and validates the logging flags.
func logOptions(format, level string) (string, string, error) {
	format = strings.ToLower(format)
	switch format {
	case "text", "json", "auto":
	default:
		return "", "", usageError("invalid log-format: must be 'text', 'json' or 'auto'")
	}

	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return "", "", usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	return format, level, nil
}
