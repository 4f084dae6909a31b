package ledger

import (
	"context"
	"time"
)

// DefaultCoalesceWindow is how long notifications accumulate before one
// flush fires.
const DefaultCoalesceWindow = 500 * time.Millisecond

// Coalescer turns a burst of change notifications into a single delayed
// flush. Notify never blocks; any number of calls within one window collapse
// into one invocation of the flush function.
type Coalescer struct {
	window time.Duration
	signal chan struct{}
}

// NewCoalescer creates a coalescer. window <= 0 uses DefaultCoalesceWindow.
func NewCoalescer(window time.Duration) *Coalescer {
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	return &Coalescer{
		window: window,
		signal: make(chan struct{}, 1),
	}
}

// Notify marks the ledger dirty. Non-blocking.
func (c *Coalescer) Notify() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Run invokes flush once per dirty window until ctx is done. The window
// starts at the first notification, so an idle ledger costs nothing.
func (c *Coalescer) Run(ctx context.Context, flush func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.signal:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.window):
		}

		// Collapse notifications that arrived during the window.
		select {
		case <-c.signal:
		default:
		}

		flush()
	}
}
