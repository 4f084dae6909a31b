package ledger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescer_CollapsesBurst(t *testing.T) {
	c := NewCoalescer(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var flushes atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, func() { flushes.Add(1) })
	}()

	for i := 0; i < 100; i++ {
		c.Notify()
	}

	time.Sleep(150 * time.Millisecond)
	if got := flushes.Load(); got != 1 {
		t.Errorf("expected 1 flush for a burst, got %d", got)
	}

	// A later notification starts a fresh window.
	c.Notify()
	time.Sleep(150 * time.Millisecond)
	if got := flushes.Load(); got != 2 {
		t.Errorf("expected 2 flushes, got %d", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestCoalescer_IdleNoFlush(t *testing.T) {
	c := NewCoalescer(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var flushes atomic.Int32
	go c.Run(ctx, func() { flushes.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := flushes.Load(); got != 0 {
		t.Errorf("expected no flushes while idle, got %d", got)
	}
}
