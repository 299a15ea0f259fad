package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vk/ctwgo/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Pool is a fixed set of worker goroutines fed by a bounded queue.
type Pool struct {
	tasks  chan func()
	policy Policy
	logger *slog.Logger
	group  errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. The queue holds as many tasks as there
// are workers.
func NewPool(ctx context.Context, workers int, policy Policy) *Pool {
	p := &Pool{
		tasks:  make(chan func(), workers),
		policy: policy,
		logger: ctxlog.FromContext(ctx),
	}
	p.logger.Debug("Starting executor pool.", "workers", workers, "policy", policy)
	for i := 0; i < workers; i++ {
		workerID := i
		p.group.Go(func() error {
			p.worker(workerID)
			return nil
		})
	}
	return p
}

// Execute implements Executor.
func (p *Pool) Execute(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrShutdown
	}
	if p.policy == Block {
		p.tasks <- task
		return nil
	}
	select {
	case p.tasks <- task:
	default:
		// Queue full: the submitting goroutine pays for the task, which
		// throttles enumeration to compilation throughput.
		p.run(task, -1)
	}
	return nil
}

// Shutdown implements Executor.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
}

// Await implements Executor.
func (p *Pool) Await(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	var interrupted error
	ctxDone := ctx.Done()
	for {
		select {
		case err := <-done:
			if interrupted == nil {
				interrupted = ctx.Err()
			}
			if interrupted != nil {
				return interrupted
			}
			return err
		case <-ctxDone:
			interrupted = ctx.Err()
			ctxDone = nil
			p.logger.Warn("Interrupted while draining the executor, still waiting for running tasks.", "error", interrupted)
		}
	}
}

// worker is the processing loop of one pool goroutine.
func (p *Pool) worker(workerID int) {
	p.logger.Debug("Worker started.", "workerID", workerID)
	for task := range p.tasks {
		p.run(task, workerID)
	}
	p.logger.Debug("Worker finished.", "workerID", workerID)
}

// run executes one task and keeps the worker alive if it panics.
func (p *Pool) run(task func(), workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked.", "workerID", workerID, "panic", fmt.Sprint(r))
		}
	}()
	task()
}
