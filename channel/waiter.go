package channel

import (
	"context"

	"cspx/metrics"
)

// waiter is a one-slot wake signal. A single goroutine owns it and may
// register it on several channels at once.
type waiter struct {
	c chan struct{}
}

func newWaiter() *waiter {
	return &waiter{c: make(chan struct{}, 1)}
}

func (w *waiter) signal() {
	select {
	case w.c <- struct{}{}:
	default:
	}
}

// park blocks until w is signalled or ctx is done.
func (w *waiter) park(ctx context.Context) error {
	metrics.Waiters.Inc()
	defer metrics.Waiters.Dec()
	select {
	case <-w.c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type waitSet map[*waiter]struct{}

func (s waitSet) add(w *waiter) {
	s[w] = struct{}{}
}

func (s waitSet) remove(w *waiter) {
	delete(s, w)
}

func (s waitSet) broadcast() {
	for w := range s {
		w.signal()
	}
}
