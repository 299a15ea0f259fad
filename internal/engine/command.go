package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/ctwgo/internal/backend"
	"github.com/vk/ctwgo/internal/classfile"
	"github.com/vk/ctwgo/internal/ctxlog"
)

// compileMethodCommand compiles one method at every configured tier.
// Commands of one class may run in any order and concurrently.
type compileMethodCommand struct {
	engine    *Engine
	classID   int64
	className string
	method    classfile.Method
}

func (c *compileMethodCommand) target() backend.Method {
	return backend.Method{Class: c.className, Name: c.method.Name, Descriptor: c.method.Descriptor}
}

func (c *compileMethodCommand) log(message string) {
	c.engine.out.MethodOutcome(c.classID, c.className, c.method.Signature(c.className), message)
}

func (c *compileMethodCommand) run(ctx context.Context) {
	s := c.engine.settings
	if !s.Tiered {
		c.compileAtLevel(ctx, s.InitialLevel())
		return
	}
	for level := s.InitialLevel(); level <= s.MaxLevel; level++ {
		if err := c.engine.backend.Deoptimize(ctx, c.target()); err != nil {
			c.log(fmt.Sprintf("error on compile at %d level: %v", level, err))
			continue
		}
		c.compileAtLevel(ctx, level)
	}
}

// compileAtLevel handles one tier. Failures are reported and never stop
// the next tier.
func (c *compileMethodCommand) compileAtLevel(ctx context.Context, level int) {
	defer func() {
		if r := recover(); r != nil {
			c.log(fmt.Sprintf("error on compile at %d level: panic: %v", level, r))
		}
	}()
	b := c.engine.backend
	m := c.target()
	verbose := c.engine.settings.Verbose

	ok, err := b.IsCompilable(ctx, m, level)
	if err != nil {
		c.log(fmt.Sprintf("error on compile at %d level: %v", level, err))
		return
	}
	if !ok {
		if verbose {
			c.log(fmt.Sprintf("not compilable at %d", level))
		}
		return
	}
	if err := b.Deoptimize(ctx, m); err != nil {
		c.log(fmt.Sprintf("error on compile at %d level: %v", level, err))
		return
	}
	if _, err := b.Enqueue(ctx, m, level); err != nil {
		ctxlog.FromContext(ctx).Debug("Enqueue failed.", "method", m.String(), "level", level, "error", err)
		c.log(fmt.Sprintf("error on compile at %d level: %v", level, err))
		return
	}
	c.waitCompilation(ctx, m)

	got, err := b.Level(ctx, m)
	switch {
	case err != nil:
		c.log(fmt.Sprintf("error on compile at %d level: %v", level, err))
	case got != level:
		c.log(fmt.Sprintf("WARNING compilation level = %d, but not %d", got, level))
	case verbose:
		c.log(fmt.Sprintf("compilation level = %d. OK", got))
	}
}

// waitCompilation polls until m leaves the compile queue, giving up after
// WaitAttempts polls. Giving up is not an error.
func (c *compileMethodCommand) waitCompilation(ctx context.Context, m backend.Method) {
	s := c.engine.settings
	if !s.BackgroundCompilation {
		return
	}
	timer := time.NewTimer(s.WaitInterval)
	defer timer.Stop()
	for i := 0; i < s.WaitAttempts; i++ {
		queued, err := c.engine.backend.IsQueued(ctx, m)
		if err != nil || !queued {
			return
		}
		timer.Reset(s.WaitInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	ctxlog.FromContext(ctx).Debug("Gave up waiting for queued compilation.", "method", m.String())
}
