package app

import (
	"context"
	"io"
	"log/slog"
	"regexp"

	"github.com/vk/ctwgo/internal/backend"
	"github.com/vk/ctwgo/internal/backend/remote"
	"github.com/vk/ctwgo/internal/backend/sim"
	"github.com/vk/ctwgo/internal/config"
	"github.com/vk/ctwgo/internal/ctxlog"
)

// App encapsulates the driver's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	backend backend.Backend
	closers []func() error
}

// Option customizes an App.
type Option func(*App)

// WithBackend replaces the backend selected by the settings.
func WithBackend(b backend.Backend) Option {
	return func(a *App) { a.backend = b }
}

// NewApp is the constructor for the driver. Protocol lines go to outW and
// log records to logW; each App has its own isolated logger.
func NewApp(outW, logW io.Writer, cfg *Config, opts ...Option) *App {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.backend == nil {
		a.backend, a.closers = newBackend(cfg.Settings)
		logger.Debug("Compiler backend selected.", "backend", cfg.Settings.Backend)
	}
	return a
}

// Close releases the backend.
func (a *App) Close() error {
	for _, c := range a.closers {
		if err := c(); err != nil {
			return err
		}
	}
	a.closers = nil
	return nil
}

// Logger returns the App's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// newBackend builds the backend named by the settings. The settings have
// been validated, so the expressions compile.
func newBackend(s *config.Config) (backend.Backend, []func() error) {
	if s.Backend == config.BackendRemote {
		c := remote.New(s.BackendURL, s.BackendTimeout)
		return c, []func() error{c.Close}
	}
	return sim.New(sim.Options{
		Delay:         s.SimDelay,
		CrashOn:       compileOptional(s.SimCrashOn),
		FailOn:        compileOptional(s.SimFailOn),
		NotCompilable: compileOptional(s.SimNotCompilable),
	}), nil
}

func compileOptional(expr string) *regexp.Regexp {
	if expr == "" {
		return nil
	}
	return regexp.MustCompile(expr)
}
