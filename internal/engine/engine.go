// Package engine turns resolved classes into compile commands. It owns the
// counters of one driver run, applies the compile range and submits one
// command per constructor and method to the executor.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vk/ctwgo/internal/backend"
	"github.com/vk/ctwgo/internal/classfile"
	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/executor"
	"github.com/vk/ctwgo/internal/protocol"
)

// Settings are the compile-range and compilation knobs of a run.
type Settings struct {
	// StartAt and StopAt bound the class indices that are compiled,
	// inclusive on both ends.
	StartAt int64
	StopAt  int64

	Tiered bool
	// MaxLevel is the last tier tried when Tiered is set.
	MaxLevel int
	// BackgroundCompilation makes commands wait for the queued compile.
	BackgroundCompilation bool
	// Preload resolves constant-pool class references before compiling.
	Preload bool
	// DeoptimizeAllRate deoptimizes everything every Nth class; <= 0 is off.
	DeoptimizeAllRate int64
	Verbose           bool

	// WaitAttempts and WaitInterval bound the queued-compilation poll.
	WaitAttempts int
	WaitInterval time.Duration
}

// InitialLevel is the first tier tried: 1 with tiered compilation, 4 without.
func (s Settings) InitialLevel() int {
	if s.Tiered {
		return 1
	}
	return 4
}

func (s Settings) lastLevel() int {
	if s.Tiered {
		return s.MaxLevel
	}
	return s.InitialLevel()
}

// Counters are the run-wide totals.
type Counters struct {
	classes      atomic.Int64
	methods      atomic.Int64
	limitReached atomic.Bool
}

// Classes returns the number of class indices handed out and kept.
func (c *Counters) Classes() int64 { return c.classes.Load() }

// Methods returns the number of compile commands submitted.
func (c *Counters) Methods() int64 { return c.methods.Load() }

// LimitReached reports whether the stop bound has been crossed.
func (c *Counters) LimitReached() bool { return c.limitReached.Load() }

// Engine compiles classes handed to it by path handlers.
type Engine struct {
	settings Settings
	backend  backend.Backend
	exec     executor.Executor
	out      *protocol.Writer
	counters Counters
}

// New returns an engine with zeroed counters.
func New(settings Settings, b backend.Backend, exec executor.Executor, out *protocol.Writer) *Engine {
	if settings.WaitAttempts <= 0 {
		settings.WaitAttempts = 10
	}
	if settings.WaitInterval <= 0 {
		settings.WaitInterval = 100 * time.Millisecond
	}
	return &Engine{settings: settings, backend: b, exec: exec, out: out}
}

// Counters exposes the run totals.
func (e *Engine) Counters() *Counters { return &e.counters }

// IsLimitReached reports whether enumeration should stop.
func (e *Engine) IsLimitReached() bool { return e.counters.LimitReached() }

// ProcessClass assigns the next class index to name and, inside the compile
// range, resolves it through loader and compiles it. Indices beyond StopAt
// are handed back and latch the limit; indices below StartAt are counted
// but not compiled. Nothing is counted once ctx is done.
func (e *Engine) ProcessClass(ctx context.Context, name string, loader classload.Loader) {
	if e.IsLimitReached() || ctx.Err() != nil {
		return
	}
	id := e.counters.classes.Add(1)
	if id > e.settings.StopAt {
		e.counters.classes.Add(-1)
		e.counters.limitReached.Store(true)
		return
	}
	if id < e.settings.StartAt {
		return
	}

	ctx = ctxlog.With(ctx, "classID", id, "class", name)
	logger := ctxlog.FromContext(ctx)
	cls, err := loader.Load(name)
	if err != nil {
		if !classload.IsSkippable(err) {
			logger.Error("Unexpected error resolving class.", "error", err)
		}
		e.out.LoadFailed(name, err)
		return
	}
	e.out.ClassStarted(id, name)

	if rate := e.settings.DeoptimizeAllRate; rate > 0 && id%rate == 0 {
		logger.Debug("Deoptimizing all methods.")
		if err := e.backend.DeoptimizeAll(ctx); err != nil {
			logger.Warn("Deoptimize-all failed.", "error", err)
		}
	}
	e.Compile(ctx, id, cls, loader)
}

// Compile submits every constructor and declared method of cls. Errors
// abandon the rest of the class and are reported, never returned.
func (e *Engine) Compile(ctx context.Context, id int64, cls *classfile.Class, loader classload.Loader) {
	name := cls.BinaryName()
	logger := ctxlog.FromContext(ctx)
	var submitted int64
	defer func() {
		e.counters.methods.Add(submitted)
		if r := recover(); r != nil {
			logger.Error("Class compilation panicked.", "panic", r)
			e.out.ClassSkipped(id, name, fmt.Errorf("panic: %v", r))
		}
	}()

	if e.settings.Preload {
		e.preload(ctx, id, cls, loader)
	}
	if cls.HasInitializer() {
		e.compileInitializer(ctx, id, name)
	}

	methods := append(cls.Constructors(), cls.DeclaredMethods()...)
	for _, m := range methods {
		cmd := &compileMethodCommand{
			engine:    e,
			classID:   id,
			className: name,
			method:    m,
		}
		if err := e.exec.Execute(func() { cmd.run(ctx) }); err != nil {
			e.out.ClassSkipped(id, name, err)
			return
		}
		submitted++
	}
	logger.Debug("Class submitted.", "methods", submitted)
}

// preload resolves every class the constant pool refers to. Unresolvable
// references are skipped one by one.
func (e *Engine) preload(ctx context.Context, id int64, cls *classfile.Class, loader classload.Loader) {
	defer func() {
		if r := recover(); r != nil {
			e.out.ClassWarning(id, cls.BinaryName(), fmt.Sprintf("preloading failed : %v", r))
		}
	}()
	resolved := 0
	refs := cls.ClassRefs()
	for _, ref := range refs {
		if _, err := loader.Load(strings.ReplaceAll(ref, "/", ".")); err == nil {
			resolved++
		}
	}
	ctxlog.FromContext(ctx).Debug("Constant pool preloaded.", "refs", len(refs), "resolved", resolved)
}

func (e *Engine) compileInitializer(ctx context.Context, id int64, name string) {
	for level := e.settings.InitialLevel(); level <= e.settings.lastLevel(); level++ {
		if err := e.backend.EnqueueInitializer(ctx, name, level); err != nil {
			e.out.MethodOutcome(id, name, classfile.InitializerName, fmt.Sprintf("ERROR at level %d : %v", level, err))
		}
	}
}
