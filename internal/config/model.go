package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"runtime"
	"time"

	"github.com/vk/ctwgo/internal/executor"
)

// Backend kinds.
const (
	BackendSim    = "sim"
	BackendRemote = "remote"
)

// Config is the complete driver configuration.
type Config struct {
	StartAt               int64
	StopAt                int64
	CompilerCount         int
	Tiered                bool
	TieredStopAtLevel     int
	BackgroundCompilation bool
	PreloadClasses        bool
	DeoptimizeAllRate     int64
	Verbose               bool
	// LogFile redirects protocol output for the whole run when set.
	LogFile string

	BootClassPath string
	JavaHome      string

	Backend        string
	BackendURL     string
	BackendTimeout time.Duration
	Backpressure   string

	// Simulated compiler fault injection, as regular expressions.
	SimCrashOn       string
	SimFailOn        string
	SimNotCompilable string
	SimDelay         time.Duration
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		StartAt:               1,
		StopAt:                math.MaxInt64,
		CompilerCount:         runtime.NumCPU(),
		Tiered:                true,
		TieredStopAtLevel:     4,
		BackgroundCompilation: true,
		PreloadClasses:        true,
		DeoptimizeAllRate:     -1,
		Backend:               BackendSim,
		BackendTimeout:        30 * time.Second,
		Backpressure:          executor.CallerRuns.String(),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.StartAt < 1 {
		errs = append(errs, fmt.Errorf("CompileTheWorldStartAt must be >= 1, got %d", c.StartAt))
	}
	if c.StopAt < c.StartAt {
		errs = append(errs, fmt.Errorf("CompileTheWorldStopAt (%d) is below CompileTheWorldStartAt (%d)", c.StopAt, c.StartAt))
	}
	if c.CompilerCount < 1 {
		errs = append(errs, fmt.Errorf("CICompilerCount must be >= 1, got %d", c.CompilerCount))
	}
	if c.TieredStopAtLevel < 0 || c.TieredStopAtLevel > 4 {
		errs = append(errs, fmt.Errorf("TieredStopAtLevel must be within 0..4, got %d", c.TieredStopAtLevel))
	}
	switch c.Backend {
	case BackendSim:
	case BackendRemote:
		if c.BackendURL == "" {
			errs = append(errs, errors.New("ctw.backend.url is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ctw.backend %q: must be %q or %q", c.Backend, BackendSim, BackendRemote))
	}
	if _, err := executor.ParsePolicy(c.Backpressure); err != nil {
		errs = append(errs, err)
	}
	for name, expr := range map[string]string{
		"ctw.sim.crashOn":       c.SimCrashOn,
		"ctw.sim.failOn":        c.SimFailOn,
		"ctw.sim.notCompilable": c.SimNotCompilable,
	} {
		if expr == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Workers is the executor size: the smaller of the CPU count and the
// compiler thread count.
func (c *Config) Workers() int {
	return min(runtime.NumCPU(), c.CompilerCount)
}
