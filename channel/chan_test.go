package channel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"cspx/log"
	"cspx/metrics"
)

const (
	blockFor = 50 * time.Millisecond
	waitFor  = 2 * time.Second
)

func newTestChan[E any](capacity int) *Chan[E] {
	return New[E](capacity, WithLogger(log.Discard()))
}

func requireBlocked[T any](t *testing.T, done <-chan T) {
	t.Helper()
	select {
	case v := <-done:
		t.Fatalf("expected to block, got %v", v)
	case <-time.After(blockFor):
	}
}

func requireDone[T any](t *testing.T, done <-chan T) T {
	t.Helper()
	select {
	case v := <-done:
		return v
	case <-time.After(waitFor):
		t.Fatal("still blocked")
	}
	panic("unreachable")
}

func TestRendezvousPutBlocksUntilTake(t *testing.T) {
	c := newTestChan[int](0)
	done := make(chan bool, 1)
	go func() {
		done <- c.Put(7)
	}()

	requireBlocked(t, done)

	v, ok := c.Take()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.True(t, requireDone(t, done))
	assert.Equal(t, 0, c.Len())
}

func TestRendezvousOneProducerAtATime(t *testing.T) {
	c := newTestChan[string](0)
	first := make(chan bool, 1)
	second := make(chan bool, 1)
	go func() { first <- c.Put("a") }()
	require.Eventually(t, func() bool { return c.Len() == 1 }, waitFor, time.Millisecond)
	go func() { second <- c.Put("b") }()

	requireBlocked(t, second)

	v, ok := c.Take()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.True(t, requireDone(t, first))

	v, ok = c.Take()
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.True(t, requireDone(t, second))
}

func TestBoundedFIFO(t *testing.T) {
	c := newTestChan[int](5)
	for i := 1; i <= 5; i++ {
		require.True(t, c.Put(i))
	}
	assert.Equal(t, 5, c.Len())
	for i := 1; i <= 5; i++ {
		v, ok := c.Take()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestBoundedWrapAround(t *testing.T) {
	c := newTestChan[int](3)
	next := 0
	for round := 0; round < 10; round++ {
		require.True(t, c.TryPut(round*2))
		require.True(t, c.TryPut(round*2+1))
		for i := 0; i < 2; i++ {
			v, ok := c.TryTake()
			require.True(t, ok)
			assert.Equal(t, next, v)
			next++
		}
	}
}

func TestCapacityTwoScenario(t *testing.T) {
	c := newTestChan[int](2)
	require.True(t, c.Put(1))
	require.True(t, c.Put(2))

	third := make(chan bool, 1)
	go func() { third <- c.Put(3) }()
	requireBlocked(t, third)

	v, ok := c.Take()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, requireDone(t, third))
	assert.Equal(t, 2, c.Len())

	for _, want := range []int{2, 3} {
		v, ok := c.Take()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), blockFor)
	defer cancel()
	_, err := c.TakeContext(ctx)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.IsClosed())
}

func TestCloseThenDrainBounded(t *testing.T) {
	c := newTestChan[string](4)
	for _, s := range []string{"x", "y", "z"} {
		require.True(t, c.Put(s))
	}
	require.True(t, c.Close())
	assert.False(t, c.Put("late"))
	assert.False(t, c.TryPut("late"))

	for _, want := range []string{"x", "y", "z"} {
		v, ok := c.Take()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	v, ok := c.Take()
	assert.False(t, ok)
	assert.Equal(t, "", v)

	_, err := c.TakeContext(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestCloseThenDrainRendezvous(t *testing.T) {
	c := newTestChan[int](0)
	done := make(chan bool, 1)
	go func() { done <- c.Put(5) }()
	require.Eventually(t, func() bool { return c.Len() == 1 }, waitFor, time.Millisecond)

	require.True(t, c.Close())
	assert.False(t, requireDone(t, done))

	v, st := c.TryTakeStatus()
	require.Equal(t, StatusTaken, st)
	assert.Equal(t, 5, v)

	_, st = c.TryTakeStatus()
	assert.Equal(t, StatusClosed, st)
}

func TestCloseIdempotent(t *testing.T) {
	c := newTestChan[int](1)
	before := testutil.ToFloat64(metrics.ChannelOps.WithLabelValues(metrics.OpClose, metrics.ResultOK))

	assert.False(t, c.IsClosed())
	assert.True(t, c.Close())
	for i := 0; i < 3; i++ {
		assert.False(t, c.Close())
	}
	assert.True(t, c.IsClosed())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ChannelOps.WithLabelValues(metrics.OpClose, metrics.ResultOK)))
}

func TestCloseWakesBlocked(t *testing.T) {
	full := newTestChan[int](1)
	require.True(t, full.Put(1))
	empty := newTestChan[int](0)

	puts := make(chan bool, 1)
	takes := make(chan bool, 1)
	go func() { puts <- full.Put(2) }()
	go func() {
		_, ok := empty.Take()
		takes <- ok
	}()
	requireBlocked(t, puts)
	requireBlocked(t, takes)

	full.Close()
	empty.Close()
	assert.False(t, requireDone(t, puts))
	assert.False(t, requireDone(t, takes))

	v, ok := full.Take()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestNonBlockingPurity(t *testing.T) {
	full := newTestChan[int](1)
	require.True(t, full.TryPut(10))
	assert.False(t, full.TryPut(11))
	assert.Equal(t, 1, full.Len())
	v, ok := full.TryTake()
	require.True(t, ok)
	assert.Equal(t, 10, v)

	empty := newTestChan[int](3)
	v, ok = empty.TryTake()
	assert.False(t, ok)
	assert.Zero(t, v)
	_, st := empty.TryTakeStatus()
	assert.Equal(t, StatusEmpty, st)
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.IsClosed())
}

func TestRendezvousTryPut(t *testing.T) {
	c := newTestChan[int](0)
	require.True(t, c.TryPut(1))
	assert.False(t, c.TryPut(2))

	v, ok := c.Take()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, c.TryPut(3))
}

func TestPutContextCancelRetractsDeposit(t *testing.T) {
	c := newTestChan[int](0)
	ctx, cancel := context.WithTimeout(context.Background(), blockFor)
	defer cancel()

	err := c.PutContext(ctx, 9)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 0, c.Len())
	_, ok := c.TryTake()
	assert.False(t, ok)
	assert.True(t, c.TryPut(1), "slot must be free again")
}

func TestPutContextCancelWhileFull(t *testing.T) {
	c := newTestChan[int](1)
	require.True(t, c.Put(1))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.PutContext(ctx, 2) }()
	requireBlocked(t, done)

	cancel()
	err := requireDone(t, done)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.Len())
}

func TestPutOnClosed(t *testing.T) {
	for _, capacity := range []int{0, 2} {
		c := newTestChan[int](capacity)
		c.Close()
		assert.False(t, c.Put(1))
		require.ErrorIs(t, c.PutContext(context.Background(), 1), ErrClosed)
		assert.Equal(t, 0, c.Len())
	}
}

func TestNewNegativeCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](-1) })
	assert.Equal(t, 4, newTestChan[int](4).Cap())
	assert.Equal(t, 0, newTestChan[int](0).Cap())
}

func TestNameAndID(t *testing.T) {
	a := New[int](0, WithName("jobs"), WithLogger(log.Discard()))
	b := newTestChan[int](0)
	assert.Equal(t, "jobs", a.String())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, b.ID(), b.String())
}

func TestProducersConsumers(t *testing.T) {
	const (
		producers = 4
		consumers = 3
		perProd   = 500
	)
	for _, capacity := range []int{0, 1, 16} {
		c := newTestChan[int](capacity)

		var sum, count atomic.Int64
		var cons errgroup.Group
		for i := 0; i < consumers; i++ {
			cons.Go(func() error {
				for {
					v, ok := c.Take()
					if !ok {
						return nil
					}
					sum.Add(int64(v))
					count.Add(1)
				}
			})
		}

		var prod errgroup.Group
		for p := 0; p < producers; p++ {
			p := p
			prod.Go(func() error {
				for i := 0; i < perProd; i++ {
					if !c.Put(p*perProd + i) {
						return ErrClosed
					}
				}
				return nil
			})
		}
		require.NoError(t, prod.Wait())
		c.Close()
		require.NoError(t, cons.Wait())

		n := producers * perProd
		assert.EqualValues(t, n, count.Load(), "capacity %d", capacity)
		assert.EqualValues(t, n*(n-1)/2, sum.Load(), "capacity %d", capacity)
	}
}

func TestTakeStatusString(t *testing.T) {
	assert.Equal(t, "empty", StatusEmpty.String())
	assert.Equal(t, "taken", StatusTaken.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "TakeStatus(9)", TakeStatus(9).String())
}
