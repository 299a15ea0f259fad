// Package sim is an in-process stand-in for a JIT compiler. It keeps a tier
// table per method, can delay compilations to exercise the queued-wait path,
// and can inject errors or process crashes for specific classes.
package sim

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/ctwgo/internal/backend"
)

// Options configures a Compiler.
type Options struct {
	// MaxLevel is the highest tier accepted; default 4.
	MaxLevel int
	// Delay is how long a method stays queued after Enqueue. Zero compiles
	// synchronously.
	Delay time.Duration
	// FailOn makes Enqueue return an error for matching classes.
	FailOn *regexp.Regexp
	// NotCompilable makes matching methods ("Class::name") uncompilable.
	NotCompilable *regexp.Regexp
	// CrashOn aborts the process when a matching class is enqueued.
	CrashOn *regexp.Regexp
	// Crash is called for CrashOn matches; default writes a fatal-error
	// banner to stderr and exits with status 134.
	Crash func(m backend.Method)
	// Interpreted reports the compiler as unavailable.
	Interpreted bool
}

// Compiler implements backend.Backend in memory.
type Compiler struct {
	opts Options

	mu     sync.Mutex
	levels map[backend.Method]int
	queued map[backend.Method]time.Time

	enqueued      atomic.Int64
	initializers  atomic.Int64
	deoptimizeAll atomic.Int64
}

// New returns a simulated compiler.
func New(opts Options) *Compiler {
	if opts.MaxLevel == 0 {
		opts.MaxLevel = 4
	}
	if opts.Crash == nil {
		opts.Crash = func(m backend.Method) { crash(os.Stderr, m) }
	}
	return &Compiler{
		opts:   opts,
		levels: make(map[backend.Method]int),
		queued: make(map[backend.Method]time.Time),
	}
}

func crash(w io.Writer, m backend.Method) {
	fmt.Fprintf(w, "#\n# A fatal error has been detected by the simulated compiler:\n#\n#  crash compiling %s\n#\n", m)
	os.Exit(134)
}

// Check implements backend.Backend.
func (c *Compiler) Check(context.Context) (backend.Info, error) {
	return backend.Info{
		Name:      "sim",
		Available: !c.opts.Interpreted,
		MaxLevel:  c.opts.MaxLevel,
	}, nil
}

// IsCompilable implements backend.Backend.
func (c *Compiler) IsCompilable(_ context.Context, m backend.Method, level int) (bool, error) {
	if level < 1 || level > c.opts.MaxLevel {
		return false, nil
	}
	if c.opts.NotCompilable != nil && c.opts.NotCompilable.MatchString(m.Class+"::"+m.Name) {
		return false, nil
	}
	return true, nil
}

// Enqueue implements backend.Backend.
func (c *Compiler) Enqueue(_ context.Context, m backend.Method, level int) (bool, error) {
	if c.opts.CrashOn != nil && c.opts.CrashOn.MatchString(m.Class) {
		c.opts.Crash(m)
	}
	if c.opts.FailOn != nil && c.opts.FailOn.MatchString(m.Class) {
		return false, fmt.Errorf("sim: compilation of %s bailed out", m)
	}
	if level < 1 || level > c.opts.MaxLevel {
		return false, nil
	}
	c.enqueued.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[m] = level
	if c.opts.Delay > 0 {
		c.queued[m] = time.Now().Add(c.opts.Delay)
	}
	return true, nil
}

// EnqueueInitializer implements backend.Backend.
func (c *Compiler) EnqueueInitializer(_ context.Context, class string, level int) error {
	if c.opts.CrashOn != nil && c.opts.CrashOn.MatchString(class) {
		c.opts.Crash(backend.Method{Class: class, Name: "<clinit>", Descriptor: "()V"})
	}
	c.initializers.Add(1)
	return nil
}

// IsQueued implements backend.Backend.
func (c *Compiler) IsQueued(_ context.Context, m backend.Method) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.queued[m]
	if !ok {
		return false, nil
	}
	if time.Now().Before(until) {
		return true, nil
	}
	delete(c.queued, m)
	return false, nil
}

// Level implements backend.Backend. A method still queued reports 0.
func (c *Compiler) Level(ctx context.Context, m backend.Method) (int, error) {
	if q, _ := c.IsQueued(ctx, m); q {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levels[m], nil
}

// Deoptimize implements backend.Backend.
func (c *Compiler) Deoptimize(_ context.Context, m backend.Method) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.levels, m)
	delete(c.queued, m)
	return nil
}

// DeoptimizeAll implements backend.Backend.
func (c *Compiler) DeoptimizeAll(context.Context) error {
	c.deoptimizeAll.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.levels)
	clear(c.queued)
	return nil
}

// Stats is a snapshot of the compiler's activity counters.
type Stats struct {
	Enqueued      int64
	Initializers  int64
	DeoptimizeAll int64
}

// Stats returns the activity counters.
func (c *Compiler) Stats() Stats {
	return Stats{
		Enqueued:      c.enqueued.Load(),
		Initializers:  c.initializers.Load(),
		DeoptimizeAll: c.deoptimizeAll.Load(),
	}
}
