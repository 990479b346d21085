// Package workerpool implements the bounded worker pool of spec §4.6: a
// fixed-size pool hosting subtask execution, FIFO queueing beyond the cap,
// and a hard per-submission timeout. Grounded on the semaphore-bounded
// goroutine dispatch in the ai-agents-orchestrator dag_scheduler reference.
package workerpool

import (
	"context"
	"time"

	"orchestrator/internal/errs"
)

// Job is a unit of work submitted to the pool.
type Job func(ctx context.Context) (interface{}, error)

// Pool bounds concurrent execution to Size workers; callers beyond the cap
// block on Submit until a slot frees, giving FIFO-ish fairness for the
// common case of a single coordinating goroutine feeding the pool.
type Pool struct {
	sem chan struct{}
}

// New creates a pool with the given capacity (default 4 when size <= 0).
func New(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit runs job on a worker, applying timeout as a hard wall-clock bound.
// On timeout the job's context is cancelled and the call returns a timeout
// error; the job itself is responsible for returning promptly once its
// context is done.
func (p *Pool) Submit(ctx context.Context, timeout time.Duration, job Job) (interface{}, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Cancelled, "submit cancelled before a worker slot opened", ctx.Err())
	}
	defer func() { <-p.sem }()

	jobCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		val interface{}
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := job(jobCtx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-jobCtx.Done():
		if jobCtx.Err() == context.DeadlineExceeded {
			return nil, errs.New(errs.Timeout, "subtask exceeded its wall-clock timeout")
		}
		return nil, errs.Wrap(errs.Cancelled, "subtask cancelled", jobCtx.Err())
	}
}

// Available reports how many worker slots are currently free.
func (p *Pool) Available() int {
	return cap(p.sem) - len(p.sem)
}

// Size reports the pool's total capacity.
func (p *Pool) Size() int {
	return cap(p.sem)
}
