package channel

import (
	"context"
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"

	"cspx/log"
	"cspx/metrics"
)

type Channel[E any] interface {
	Put(e E) bool
	Take() (E, bool)
	TryPut(e E) bool
	TryTake() (E, bool)
	Close() bool
	IsClosed() bool
	Cap() int
	PutContext(ctx context.Context, e E) error
	TakeContext(ctx context.Context) (E, error)
}

// TakeStatus tells a successful take apart from the two "no value" cases.
type TakeStatus int

const (
	StatusEmpty TakeStatus = iota
	StatusTaken
	StatusClosed
)

func (s TakeStatus) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusTaken:
		return "taken"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("TakeStatus(%d)", int(s))
}

type Option func(*options)

type options struct {
	name   string
	logger log.Logger
}

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// handoff is one rendezvous deposit. taken flips once a taker collects it.
type handoff[E any] struct {
	value E
	taken bool
}

// Chan is a rendezvous channel when its capacity is 0 and a bounded FIFO
// buffer otherwise. All state is guarded by mu.
type Chan[E any] struct {
	id       string
	name     string
	capacity int
	logger   log.Logger

	mu      sync.Mutex
	buf     []E // ring, len(buf) == capacity
	head    int
	count   int
	pending *handoff[E]
	closed  bool
	waiters waitSet
}

var _ Channel[int] = (*Chan[int])(nil)

// New creates a channel. It panics if capacity is negative.
func New[E any](capacity int, opts ...Option) *Chan[E] {
	if capacity < 0 {
		panic(fmt.Sprintf("channel: negative capacity %d", capacity))
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	c := &Chan[E]{
		id:       uuid.NewV4().String(),
		name:     o.name,
		capacity: capacity,
		logger:   o.logger,
		waiters:  make(waitSet),
	}
	if capacity > 0 {
		c.buf = make([]E, capacity)
	}
	return c
}

func (c *Chan[E]) ID() string {
	return c.id
}

func (c *Chan[E]) String() string {
	if c.name != "" {
		return c.name
	}
	return c.id
}

func (c *Chan[E]) Cap() int {
	return c.capacity
}

// Len reports how many values can be taken right now.
func (c *Chan[E]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return 1
	}
	return c.count
}

func (c *Chan[E]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Put blocks until e is accepted or the channel is closed.
func (c *Chan[E]) Put(e E) bool {
	return c.PutContext(context.Background(), e) == nil
}

// Take blocks until a value is available. ok is false once the channel is
// closed and drained.
func (c *Chan[E]) Take() (E, bool) {
	v, err := c.TakeContext(context.Background())
	return v, err == nil
}

// PutContext is Put with cancellation. On a rendezvous channel it returns
// only after a taker has collected e. A cancelled put never leaves its value
// behind.
func (c *Chan[E]) PutContext(ctx context.Context, e E) error {
	w := newWaiter()
	c.mu.Lock()
	for !c.closed && !c.roomLocked() {
		if err := c.wait(ctx, w); err != nil {
			c.mu.Unlock()
			return c.cancel(metrics.OpPut, err)
		}
	}
	if c.closed {
		c.mu.Unlock()
		metrics.ObserveOp(metrics.OpPut, metrics.ResultClosed)
		return ErrClosed
	}
	if c.capacity > 0 {
		c.pushLocked(e)
		c.mu.Unlock()
		metrics.ObserveOp(metrics.OpPut, metrics.ResultOK)
		return nil
	}

	h := &handoff[E]{value: e}
	c.pending = h
	c.waiters.broadcast()
	for !h.taken && !c.closed {
		if err := c.wait(ctx, w); err != nil {
			if h.taken {
				break
			}
			if c.pending == h {
				c.pending = nil
				c.waiters.broadcast()
			}
			c.mu.Unlock()
			return c.cancel(metrics.OpPut, err)
		}
	}
	taken := h.taken
	c.mu.Unlock()
	if !taken {
		// closed before collection; the deposit stays collectible
		metrics.ObserveOp(metrics.OpPut, metrics.ResultClosed)
		return ErrClosed
	}
	metrics.ObserveOp(metrics.OpPut, metrics.ResultOK)
	return nil
}

// TakeContext is Take with cancellation. It returns ErrClosed once the
// channel is closed and drained.
func (c *Chan[E]) TakeContext(ctx context.Context) (E, error) {
	var zero E
	w := newWaiter()
	c.mu.Lock()
	for !c.hasValueLocked() && !c.closed {
		if err := c.wait(ctx, w); err != nil {
			c.mu.Unlock()
			return zero, c.cancel(metrics.OpTake, err)
		}
	}
	if !c.hasValueLocked() {
		c.mu.Unlock()
		metrics.ObserveOp(metrics.OpTake, metrics.ResultClosed)
		return zero, ErrClosed
	}
	v := c.popLocked()
	c.mu.Unlock()
	metrics.ObserveOp(metrics.OpTake, metrics.ResultOK)
	return v, nil
}

// TryPut accepts e only if that is possible without waiting. On a rendezvous
// channel e is deposited into the empty slot for the next taker.
func (c *Chan[E]) TryPut(e E) bool {
	ok := c.claimPut(e)
	if ok {
		metrics.ObserveOp(metrics.OpTryPut, metrics.ResultOK)
	} else {
		metrics.ObserveOp(metrics.OpTryPut, metrics.ResultFull)
	}
	return ok
}

func (c *Chan[E]) TryTake() (E, bool) {
	v, st := c.TryTakeStatus()
	return v, st == StatusTaken
}

// TryTakeStatus is TryTake that also reports whether an empty result means
// the channel is closed and drained.
func (c *Chan[E]) TryTakeStatus() (E, TakeStatus) {
	v, st := c.claimTake()
	switch st {
	case StatusTaken:
		metrics.ObserveOp(metrics.OpTryTake, metrics.ResultOK)
	case StatusClosed:
		metrics.ObserveOp(metrics.OpTryTake, metrics.ResultClosed)
	default:
		metrics.ObserveOp(metrics.OpTryTake, metrics.ResultEmpty)
	}
	return v, st
}

// Close reports true only for the call that closed the channel.
func (c *Chan[E]) Close() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	left := c.count
	if c.pending != nil {
		left = 1
	}
	c.waiters.broadcast()
	c.mu.Unlock()

	metrics.ObserveOp(metrics.OpClose, metrics.ResultOK)
	c.logger.Debug("channel %s closed, %d value(s) left to drain", c, left)
	return true
}

// claimTake atomically takes a value if one is still available.
func (c *Chan[E]) claimTake() (E, TakeStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasValueLocked() {
		return c.popLocked(), StatusTaken
	}
	var zero E
	if c.closed {
		return zero, StatusClosed
	}
	return zero, StatusEmpty
}

// claimPut atomically puts e if there is still room.
func (c *Chan[E]) claimPut(e E) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.roomLocked() {
		return false
	}
	if c.capacity > 0 {
		c.pushLocked(e)
	} else {
		c.pending = &handoff[E]{value: e}
		c.waiters.broadcast()
	}
	return true
}

// peek reports readiness of a take or put without changing channel state.
// A non-nil w is registered in the same critical section, so a later state
// change cannot be missed.
func (c *Chan[E]) peek(kind OpKind, w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w != nil {
		c.waiters.add(w)
	}
	if kind == OpTake {
		return c.closed || c.hasValueLocked()
	}
	return !c.closed && c.roomLocked()
}

func (c *Chan[E]) unregister(w *waiter) {
	c.mu.Lock()
	c.waiters.remove(w)
	c.mu.Unlock()
}

// wait parks on w with mu held on entry and on return.
func (c *Chan[E]) wait(ctx context.Context, w *waiter) error {
	c.waiters.add(w)
	c.mu.Unlock()
	err := w.park(ctx)
	c.mu.Lock()
	c.waiters.remove(w)
	return err
}

func (c *Chan[E]) cancel(op string, cause error) error {
	metrics.ObserveOp(op, metrics.ResultCancelled)
	c.logger.Debug("channel %s: %s cancelled: %v", c, op, cause)
	return cancelled(cause, op)
}

func (c *Chan[E]) roomLocked() bool {
	if c.capacity > 0 {
		return c.count < c.capacity
	}
	return c.pending == nil
}

func (c *Chan[E]) hasValueLocked() bool {
	return c.pending != nil || c.count > 0
}

func (c *Chan[E]) pushLocked(e E) {
	c.buf[(c.head+c.count)%c.capacity] = e
	c.count++
	c.waiters.broadcast()
}

func (c *Chan[E]) popLocked() E {
	var zero E
	if h := c.pending; h != nil {
		h.taken = true
		c.pending = nil
		c.waiters.broadcast()
		return h.value
	}
	v := c.buf[c.head]
	c.buf[c.head] = zero
	c.head = (c.head + 1) % c.capacity
	c.count--
	c.waiters.broadcast()
	return v
}
