// Package worker provides the bounded pool that executes pipeline runs.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the submission queue is at
// capacity. Callers surface this as a retryable rejection instead of
// blocking or silently dropping the run.
var ErrQueueFull = errors.New("worker queue full")

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = errors.New("worker pool stopped")

// Job is one unit of background work. The context is the pool's base
// context, detached from any ingestion request.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	jobs    chan Job
	logger  *zap.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewPool sizes the pool. Zero or negative values fall back to one worker
// and an unbuffered queue.
func NewPool(size, queueCapacity int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueCapacity < 0 {
		queueCapacity = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:    make(chan Job, queueCapacity),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start(size int) {
	if size <= 0 {
		size = 1
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		job(p.baseCtx)
	}
}

// Submit enqueues a job without blocking. It reports ErrQueueFull when the
// queue is at capacity.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs to finish, or for the
// context to expire. Queued jobs still run; only their outbound calls are
// cancelled if the wait deadline passes.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("worker pool stop timed out; cancelling in-flight runs")
		return ctx.Err()
	}
}
