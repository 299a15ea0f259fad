// Package executor runs compile commands. A run with a single compiler
// thread uses the Inline executor; otherwise a fixed Pool with a queue as
// deep as the worker count throttles the enumerating goroutine when full.
package executor

import (
	"context"
	"errors"
)

// ErrShutdown is returned by Execute once Shutdown has been called.
var ErrShutdown = errors.New("executor: shut down")

// Executor accepts tasks until Shutdown and drains them in Await.
type Executor interface {
	// Execute runs task now or later. It may block or run task on the
	// calling goroutine when the executor is saturated.
	Execute(task func()) error
	// Shutdown stops accepting tasks. Already accepted tasks still run.
	Shutdown()
	// Await blocks until every accepted task has finished. Cancelling ctx
	// does not abandon the wait; the cancellation is reported once the
	// tasks are drained.
	Await(ctx context.Context) error
}

// Policy decides what Execute does when the pool queue is full.
type Policy int

const (
	// CallerRuns runs the task on the submitting goroutine.
	CallerRuns Policy = iota
	// Block waits for queue space.
	Block
)

// ParsePolicy maps "caller-runs" and "block" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "caller-runs":
		return CallerRuns, nil
	case "block":
		return Block, nil
	}
	return CallerRuns, errors.New("executor: unknown backpressure policy " + s)
}

func (p Policy) String() string {
	if p == Block {
		return "block"
	}
	return "caller-runs"
}

// New returns an Inline executor for workers <= 1, a Pool otherwise.
func New(ctx context.Context, workers int, policy Policy) Executor {
	if workers <= 1 {
		return &Inline{}
	}
	return NewPool(ctx, workers, policy)
}

// Inline runs every task immediately on the caller's goroutine.
type Inline struct {
	shutdown bool
}

// Execute implements Executor.
func (e *Inline) Execute(task func()) error {
	if e.shutdown {
		return ErrShutdown
	}
	task()
	return nil
}

// Shutdown implements Executor.
func (e *Inline) Shutdown() { e.shutdown = true }

// Await implements Executor. Nothing is ever pending, so only an
// interrupted ctx is reported.
func (e *Inline) Await(ctx context.Context) error { return ctx.Err() }
