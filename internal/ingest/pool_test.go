package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := NewPool(3)
	var inflight, peak atomic.Int64

	b1 := pool.NewBatch(context.Background())
	b2 := pool.NewBatch(context.Background())
	task := func(ctx context.Context) error {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return nil
	}
	for i := 0; i < 20; i++ {
		b1.Go(task)
		b2.Go(task)
	}
	if err := b1.Wait(); err != nil {
		t.Fatal(err)
	}
	if err := b2.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
	if b1.Submitted() != 20 || b1.Failed() != 0 {
		t.Errorf("submitted=%d failed=%d", b1.Submitted(), b1.Failed())
	}
}

func TestPool_SizeFloor(t *testing.T) {
	if got := NewPool(0).Size(); got != 1 {
		t.Errorf("Size = %d, want 1", got)
	}
}

func TestBatch_FirstErrorWins(t *testing.T) {
	pool := NewPool(1)
	b := pool.NewBatch(context.Background())
	boom := errors.New("boom")

	var ran atomic.Int64
	b.Go(func(ctx context.Context) error {
		ran.Add(1)
		return boom
	})
	if err := b.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want boom", err)
	}
	if b.Err() == nil {
		t.Error("Err nil after failure")
	}
	if b.Failed() != 1 {
		t.Errorf("Failed = %d, want 1", b.Failed())
	}

	// the pool slot must be released for other batches
	other := pool.NewBatch(context.Background())
	other.Go(func(ctx context.Context) error { ran.Add(1); return nil })
	if err := other.Wait(); err != nil {
		t.Fatal(err)
	}
	if ran.Load() != 2 {
		t.Errorf("ran = %d, want 2", ran.Load())
	}
}

func TestBatch_RunningTaskKeepsParentContext(t *testing.T) {
	pool := NewPool(2)
	b := pool.NewBatch(context.Background())
	started := make(chan struct{})

	var ctxErr atomic.Value
	b.Go(func(ctx context.Context) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			ctxErr.Store(err)
		}
		return nil
	})
	<-started
	b.Go(func(ctx context.Context) error { return errors.New("fail fast") })

	if err := b.Wait(); err == nil {
		t.Fatal("expected error")
	}
	if v := ctxErr.Load(); v != nil {
		t.Errorf("running task saw cancellation: %v", v)
	}
}
