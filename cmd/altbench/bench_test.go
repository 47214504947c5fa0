package main

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspx/channel"
	"cspx/log"
)

func TestRunDeliversEverything(t *testing.T) {
	for _, capacity := range []int{0, 8} {
		o := options{Producers: 3, Capacity: capacity, Items: 200, Seed: 1}
		rep, err := run(context.Background(), o, log.Discard())
		require.NoError(t, err)
		assert.Equal(t, 600, rep.Received)
		for i, n := range rep.Wins {
			assert.Equal(t, 200, n, "producer-%d", i)
		}
	}
}

func TestRunNoItems(t *testing.T) {
	rep, err := run(context.Background(), options{Producers: 2, Items: 0}, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Received)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := run(ctx, options{Producers: 2, Items: 1 << 20}, log.Discard())
	require.ErrorIs(t, err, channel.ErrCancelled)
}

func TestRunRejectsBadOptions(t *testing.T) {
	_, err := run(context.Background(), options{Producers: 0, Items: 1}, log.Discard())
	assert.Error(t, err)
	_, err = run(context.Background(), options{Producers: 1, Capacity: -1}, log.Discard())
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--producers", "2", "--items", "50", "--capacity", "1", "--priority", "--log-level", "warn"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))
}

func TestBindFlags(t *testing.T) {
	o := defaultOptions()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(flags, &o)
	require.NoError(t, flags.Parse([]string{"--producers=7", "--capacity=3", "--seed=9", "--priority"}))
	assert.Equal(t, 7, o.Producers)
	assert.Equal(t, 3, o.Capacity)
	assert.Equal(t, int64(9), o.Seed)
	assert.True(t, o.Priority)
	assert.Equal(t, defaultOptions().Items, o.Items)
}
