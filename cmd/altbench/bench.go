package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"cspx/channel"
	"cspx/log"
)

type options struct {
	Producers int
	Capacity  int
	Items     int
	Priority  bool
	Seed      int64
}

func defaultOptions() options {
	return options{
		Producers: 4,
		Capacity:  0,
		Items:     10000,
	}
}

func (o options) validate() error {
	if o.Producers < 1 {
		return errors.Errorf("producers must be at least 1, got %d", o.Producers)
	}
	if o.Capacity < 0 {
		return errors.Errorf("capacity must not be negative, got %d", o.Capacity)
	}
	if o.Items < 0 {
		return errors.Errorf("items must not be negative, got %d", o.Items)
	}
	return nil
}

type report struct {
	Wins     []int
	Received int
	Elapsed  time.Duration
}

func (r report) log(logger log.Logger) {
	logger.Info("received %d values in %v", r.Received, r.Elapsed)
	for i, n := range r.Wins {
		share := 0.0
		if r.Received > 0 {
			share = float64(n) * 100 / float64(r.Received)
		}
		logger.Info("producer-%d: %d wins (%.1f%%)", i, n, share)
	}
}

// lockedRand makes a seeded *rand.Rand safe to share.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// run starts one producer per channel and a single consumer that alts over
// every channel until all of them are closed and drained.
func run(ctx context.Context, o options, logger log.Logger) (report, error) {
	if err := o.validate(); err != nil {
		return report{}, err
	}
	chans := make([]*channel.Chan[int], o.Producers)
	for i := range chans {
		chans[i] = channel.New[int](o.Capacity,
			channel.WithName(fmt.Sprintf("producer-%d", i)),
			channel.WithLogger(logger))
	}

	cfg := channel.NewConfig()
	cfg.Priority = o.Priority
	cfg.Logger = logger
	if o.Seed != 0 {
		cfg.Rand = &lockedRand{r: rand.New(rand.NewSource(o.Seed))}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chans {
		i, c := i, c
		g.Go(func() error {
			defer c.Close()
			for n := 0; n < o.Items; n++ {
				if err := c.PutContext(gctx, i*o.Items+n); err != nil {
					return errors.Wrapf(err, "producer-%d", i)
				}
			}
			return nil
		})
	}

	rep := report{Wins: make([]int, len(chans))}
	g.Go(func() error {
		ops := make([]channel.Op[int], len(chans))
		owner := make([]int, len(chans))
		for i, c := range chans {
			ops[i] = channel.TakeOp(c)
			owner[i] = i
		}
		for len(ops) > 0 {
			out, err := channel.AltContext(gctx, ops, cfg)
			if err != nil {
				return errors.Wrap(err, "consumer")
			}
			if out.Closed {
				logger.Debug("%s drained", out.Channel)
				ops = append(ops[:out.Index], ops[out.Index+1:]...)
				owner = append(owner[:out.Index], owner[out.Index+1:]...)
				continue
			}
			rep.Wins[owner[out.Index]]++
			rep.Received++
		}
		return nil
	})

	err := g.Wait()
	rep.Elapsed = time.Since(start)
	return rep, err
}
