package ingest

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many chunk writes run at once across the whole process. It
// is created once and shared by every tick.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a Pool running at most size tasks concurrently.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.size }

// Batch tracks the tasks submitted for one file. Tasks queue for a pool slot;
// once any task fails, tasks still waiting for a slot are dropped and Wait
// reports the first failure.
type Batch struct {
	pool      *Pool
	group     *errgroup.Group
	gctx      context.Context
	parent    context.Context
	submitted int
	failed    atomic.Int64
}

// NewBatch starts an independent completion group on the pool.
func (p *Pool) NewBatch(ctx context.Context) *Batch {
	g, gctx := errgroup.WithContext(ctx)
	return &Batch{pool: p, group: g, gctx: gctx, parent: ctx}
}

// Go submits task. It never blocks; the task queues until a slot frees up.
// Running tasks receive the batch's parent context, so a failure elsewhere in
// the batch does not cut a write short.
func (b *Batch) Go(task func(ctx context.Context) error) {
	b.submitted++
	b.group.Go(func() error {
		if err := b.pool.sem.Acquire(b.gctx, 1); err != nil {
			return err
		}
		defer b.pool.sem.Release(1)
		if err := task(b.parent); err != nil {
			b.failed.Add(1)
			return err
		}
		return nil
	})
}

// Err is non-nil once a task has failed or the parent context is done.
func (b *Batch) Err() error { return b.gctx.Err() }

// Submitted returns how many tasks were handed to Go.
func (b *Batch) Submitted() int { return b.submitted }

// Failed returns how many tasks returned an error. Valid after Wait.
func (b *Batch) Failed() int { return int(b.failed.Load()) }

// Wait blocks until every submitted task has finished and returns the first
// error, if any.
func (b *Batch) Wait() error { return b.group.Wait() }
