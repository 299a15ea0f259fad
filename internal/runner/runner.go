// Package runner supervises repeated driver subprocesses over one target.
// A phase that crashes is inspected for the last class it started and the
// next phase resumes right after it, until a phase exits cleanly.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/ledger"
)

// Config holds the runner settings.
type Config struct {
	// Target is a directory, a jar or ModulesTarget.
	Target   string
	JavaHome string
	// LogDir receives the per-phase logs.
	LogDir  string
	StartAt int64
	// StopAt is passed to every phase when positive.
	StopAt int64
	// MaxPhases caps the phases launched by one Run. 0 is unlimited.
	MaxPhases int
	// LedgerPath enables resuming an interrupted runner when set.
	LedgerPath string
	// ReportPath receives a YAML report when set.
	ReportPath string
}

// Validate checks the settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Target == "" {
		errs = append(errs, errors.New("target is required"))
	}
	if c.StartAt < 1 {
		errs = append(errs, fmt.Errorf("start index must be at least 1, got %d", c.StartAt))
	}
	if c.StopAt != 0 && c.StopAt < c.StartAt {
		errs = append(errs, fmt.Errorf("stop index %d is below start index %d", c.StopAt, c.StartAt))
	}
	if c.MaxPhases < 0 {
		errs = append(errs, fmt.Errorf("max phases must not be negative, got %d", c.MaxPhases))
	}
	return errors.Join(errs...)
}

type state int

const (
	stateRunning state = iota
	stateInspect
	stateDone
)

func (s state) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateInspect:
		return "inspect"
	case stateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Runner drives the phases of one target.
type Runner struct {
	cfg      Config
	launcher Launcher
	logger   *slog.Logger
	banner   *banner
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithBannerOutput sets where phase banners go. Defaults to os.Stdout.
func WithBannerOutput(w io.Writer) Option {
	return func(r *Runner) { r.banner = newBanner(w) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New validates cfg and creates a Runner.
func New(cfg Config, launcher Launcher, opts ...Option) (*Runner, error) {
	if cfg.StartAt == 0 {
		cfg.StartAt = 1
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "."
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runner settings: %w", err)
	}
	if launcher == nil {
		return nil, errors.New("launcher is required")
	}
	r := &Runner{
		cfg:      cfg,
		launcher: launcher,
		logger:   slog.Default(),
		banner:   newBanner(os.Stdout),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type phaseResult struct {
	exitCode int
	signal   string
}

// Run launches phases until one exits cleanly. Failures never stop the
// run; they are collected and returned together as an *Error. The report
// is returned even when err is non-nil, once the target was counted.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ctx = ctxlog.WithLogger(ctx, r.logger)
	logger := r.logger

	path, err := ResolveTarget(r.cfg.Target, r.cfg.JavaHome)
	if err != nil {
		return nil, err
	}
	count, err := CountClasses(ctx, path)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoClasses, path)
	}
	if err := os.MkdirAll(r.cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	store, st, failures, err := r.openLedger(path)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}

	logger.Info("🚀 Starting compile-the-world runner.", "target", path, "classes", count, "phase", st.Phase, "start", st.Start)
	report := &Report{Target: path, Classes: count, Started: r.now()}

	var (
		s         = stateRunning
		phase     Phase
		result    phaseResult
		launched  int
		truncated bool
	)
	for s != stateDone {
		logger.Debug("Runner state.", "state", s, "phase", st.Phase)
		switch s {
		case stateRunning:
			if r.cfg.MaxPhases > 0 && launched >= r.cfg.MaxPhases {
				logger.Warn("Phase limit reached.", "max_phases", r.cfg.MaxPhases)
				truncated = true
				s = stateDone
				continue
			}
			phase = Phase{
				Number:  st.Phase,
				Start:   st.Start,
				Stop:    r.cfg.StopAt,
				Target:  path,
				LogFile: r.logFile(st.Phase),
			}
			result, err = r.runPhase(ctx, phase)
			if err != nil {
				return r.finish(report, st, failures, truncated), err
			}
			launched++
			s = stateInspect

		case stateInspect:
			st.Phase++
			if result.exitCode == 0 {
				st.Done = true
				s = stateDone
			} else {
				f, next, err := inspect(phase, result)
				if err != nil {
					return r.finish(report, st, failures, truncated), err
				}
				r.banner.failure(describeFailure(f))
				logger.Warn("Phase failed.", "phase", phase.Number, "class", f.Class, "index", f.Index, "exit_code", f.ExitCode, "signal", f.Signal)
				failures = append(failures, f)
				if store != nil {
					if err := store.AddFailure(f); err != nil {
						return r.finish(report, st, failures, truncated), err
					}
				}
				st.Start = next
				s = stateRunning
				if next > count || (r.cfg.StopAt > 0 && next > r.cfg.StopAt) {
					st.Done = true
					s = stateDone
				}
			}
			if store != nil {
				if err := store.Save(st); err != nil {
					return r.finish(report, st, failures, truncated), err
				}
			}
		}
	}

	report = r.finish(report, st, failures, truncated)
	logger.Info("🏁 Runner finished.", "phases", report.Phases, "failures", len(failures))
	if r.cfg.ReportPath != "" {
		if err := report.WriteFile(r.cfg.ReportPath); err != nil {
			return report, err
		}
	}
	if len(failures) > 0 || truncated {
		return report, &Error{Target: path, Failures: failures, Incomplete: truncated}
	}
	return report, nil
}

func (r *Runner) finish(report *Report, st ledger.State, failures []ledger.Failure, truncated bool) *Report {
	report.Phases = st.Phase - 1
	report.Completed = st.Done && !truncated
	report.Finished = r.now()
	report.Failures = newFailureEntries(failures)
	return report
}

// openLedger restores the state of an earlier run. A finished ledger is
// reset so the target is compiled again from the configured start.
func (r *Runner) openLedger(target string) (*ledger.Ledger, ledger.State, []ledger.Failure, error) {
	fresh := ledger.State{Target: target, Phase: 1, Start: r.cfg.StartAt}
	if r.cfg.LedgerPath == "" {
		return nil, fresh, nil, nil
	}
	store, err := ledger.Open(r.cfg.LedgerPath)
	if err != nil {
		return nil, ledger.State{}, nil, err
	}
	st, err := store.Resume(target, r.cfg.StartAt)
	if err != nil {
		store.Close()
		return nil, ledger.State{}, nil, err
	}
	if st.Done {
		r.logger.Info("Previous run completed; starting over.", "ledger", r.cfg.LedgerPath)
		if err := store.Reset(); err != nil {
			store.Close()
			return nil, ledger.State{}, nil, err
		}
		return store, fresh, nil, nil
	}
	failures, err := store.Failures()
	if err != nil {
		store.Close()
		return nil, ledger.State{}, nil, err
	}
	if st.Phase > 1 {
		r.logger.Info("Resuming interrupted run.", "phase", st.Phase, "start", st.Start, "failures", len(failures))
	}
	return store, st, failures, nil
}

func (r *Runner) logFile(phase int) string {
	return filepath.Join(r.cfg.LogDir, fmt.Sprintf("%s_%d.log", filepath.Base(r.cfg.Target), phase))
}

func (r *Runner) runPhase(ctx context.Context, phase Phase) (phaseResult, error) {
	cmd, err := r.launcher.BuildCommand(ctx, phase)
	if err != nil {
		return phaseResult{}, fmt.Errorf("phase %d: %w", phase.Number, err)
	}
	out, err := os.Create(phase.LogFile)
	if err != nil {
		return phaseResult{}, fmt.Errorf("phase %d: failed to create log: %w", phase.Number, err)
	}
	defer out.Close()
	cmd.Stdout, cmd.Stderr = out, out

	r.banner.phaseStarted(phase, r.now())
	r.logger.Debug("Launching phase.", "phase", phase.Number, "command", cmd.String())
	err = cmd.Run()

	var res phaseResult
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.exitCode = exitErr.ExitCode()
		res.signal = signalName(exitErr.ProcessState)
	default:
		return res, fmt.Errorf("phase %d: failed to launch driver: %w", phase.Number, err)
	}
	r.banner.phaseFinished(phase, r.now(), res.exitCode, res.signal)
	if ctx.Err() != nil {
		return res, fmt.Errorf("phase %d interrupted: %w", phase.Number, ctx.Err())
	}
	return res, nil
}

// inspect turns a failed phase into a failure record and the start index
// of the next phase.
func inspect(phase Phase, res phaseResult) (ledger.Failure, int64, error) {
	f := ledger.Failure{Phase: phase.Number, ExitCode: res.exitCode, Signal: res.signal}
	index, name, found, err := LastClassInFile(phase.LogFile)
	if err != nil {
		return f, 0, fmt.Errorf("phase %d: %w", phase.Number, err)
	}
	if !found {
		f.Index = phase.Start
		return f, phase.Start + 1, nil
	}
	f.Class, f.Index = name, index
	return f, index + 1, nil
}
