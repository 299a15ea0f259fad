package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vk/ctwgo/internal/backend"
	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/config"
	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/engine"
	"github.com/vk/ctwgo/internal/executor"
	"github.com/vk/ctwgo/internal/pathhandler"
	"github.com/vk/ctwgo/internal/protocol"
)

// ErrNoInputs is returned when no paths were given and no boot class path
// could be resolved.
var ErrNoInputs = errors.New("no input paths and no boot class path to default to")

// Run executes one compile-the-world pass. Per-class and per-method
// failures are reported in the protocol output and never returned; the
// returned error is reserved for start-up failures and interruption.
func (a *App) Run(ctx context.Context) error {
	ctx = a.context(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")
	s := a.config.Settings

	info, known, err := backend.CheckAvailable(ctx, a.backend)
	if err != nil {
		return fmt.Errorf("compiler backend is not usable: %w", err)
	}
	if !known {
		logger.Warn("Compiler availability cannot be determined on this platform profile; continuing.")
	} else {
		logger.Debug("Compiler backend ready.", "name", info.Name, "max_level", info.MaxLevel)
	}

	outW, closeOut, err := a.protocolOutput(s.LogFile)
	if err != nil {
		return err
	}
	defer closeOut()
	out := protocol.NewWriter(outW)

	bootPath := pathhandler.BootClassPath(s.BootClassPath, pathhandler.JavaHome(s.JavaHome))
	inputs, defaultMode := a.config.Inputs, false
	if len(inputs) == 0 {
		inputs, defaultMode = bootPath, true
		if len(inputs) == 0 {
			return ErrNoInputs
		}
	}

	classPath, err := classload.OpenClassPath(bootPath)
	if err != nil {
		return fmt.Errorf("opening boot class path: %w", err)
	}
	defer classPath.Close()

	policy, err := executor.ParsePolicy(s.Backpressure)
	if err != nil {
		return err
	}
	workers := s.Workers()
	exec := executor.New(ctx, workers, policy)
	eng := engine.New(engineSettings(s), a.backend, exec, out)

	if a.config.StatusPort > 0 {
		srv := a.startStatusServer(ctx, a.config.StatusPort, eng)
		defer a.stopStatusServer(ctx, srv)
	}

	logger.Info("🚀 Starting compilation...", "inputs", len(inputs), "workers", workers, "default_inputs", defaultMode)
	started := time.Now()
	deps := pathhandler.Deps{Sink: eng, Parent: classPath, Out: out}
	for i, path := range inputs {
		if eng.IsLimitReached() {
			logger.Debug("Class limit reached, skipping remaining inputs.")
			break
		}
		if ctx.Err() != nil {
			logger.Warn("Interrupted, skipping remaining inputs.")
			break
		}
		if defaultMode && pathhandler.SkipDuplicateRuntime(path, i) {
			logger.Debug("Skipping duplicate runtime jar.", "path", path)
			continue
		}
		h := pathhandler.Create(path, deps)
		logger.Debug("Processing input.", "path", path, "kind", pathhandler.KindOf(h))
		if err := h.Process(ctx); err != nil {
			logger.Error("Input could not be processed.", "path", path, "error", err)
		}
	}

	exec.Shutdown()
	awaitErr := exec.Await(ctx)
	elapsed := time.Since(started)

	counters := eng.Counters()
	out.Done(counters.Classes(), counters.Methods(), elapsed.Milliseconds())
	logger.Info("🏁 Compilation finished.", "classes", counters.Classes(), "methods", counters.Methods(), "elapsed", elapsed)

	if awaitErr != nil {
		return fmt.Errorf("run interrupted: %w", awaitErr)
	}
	logger.Debug("App.Run method finished.")
	return nil
}

// protocolOutput returns the protocol destination: the log file when one
// is configured, else the App's output writer.
func (a *App) protocolOutput(logFile string) (io.Writer, func(), error) {
	if logFile == "" {
		return a.outW, func() {}, nil
	}
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening CompileTheWorldLogFile: %w", err)
	}
	a.logger.Debug("Protocol output redirected.", "path", logFile)
	return f, func() {
		if err := f.Close(); err != nil {
			a.logger.Warn("Closing protocol log file failed.", "path", logFile, "error", err)
		}
	}, nil
}

func engineSettings(s *config.Config) engine.Settings {
	return engine.Settings{
		StartAt:               s.StartAt,
		StopAt:                s.StopAt,
		Tiered:                s.Tiered,
		MaxLevel:              s.TieredStopAtLevel,
		BackgroundCompilation: s.BackgroundCompilation,
		Preload:               s.PreloadClasses,
		DeoptimizeAllRate:     s.DeoptimizeAllRate,
		Verbose:               s.Verbose,
	}
}
