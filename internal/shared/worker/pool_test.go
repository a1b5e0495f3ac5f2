package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sharedErrors "github.com/reshetovitsme/tg-forwarder/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWork struct {
	id    int
	delay time.Duration
	fail  bool
}

func process(counter *atomic.Int64) func(context.Context, testWork) error {
	return func(_ context.Context, w testWork) error {
		time.Sleep(w.delay)
		counter.Add(1)
		if w.fail {
			return errors.New("work failed")
		}
		return nil
	}
}

func TestNewPool_Defaults(t *testing.T) {
	var n atomic.Int64
	pool := NewPool("test", 0, 0, process(&n))
	assert.Equal(t, DefaultWorkers, pool.workers)
	assert.Equal(t, DefaultQueueSize, pool.queueSize)
}

func TestNewPool_NilProcessor(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[testWork]("test", 1, 1, nil)
	})
}

func TestPool_Lifecycle(t *testing.T) {
	var n atomic.Int64
	pool := NewPool("test", 2, 10, process(&n))

	assert.ErrorIs(t, pool.Submit(testWork{}), ErrPoolNotStarted)

	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(5), n.Load())
	assert.ErrorIs(t, pool.Submit(testWork{id: 99}), ErrPoolStopped)

	// second Stop is a no-op
	assert.NoError(t, pool.Stop(time.Second))
}

func TestPool_StopDrainsQueuedWork(t *testing.T) {
	var n atomic.Int64
	pool := NewPool("test", 1, 10, process(&n))
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i, delay: 10 * time.Millisecond}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(5), n.Load())
}

func TestPool_CancelledStartContextKeepsWorking(t *testing.T) {
	var n atomic.Int64
	pool := NewPool("test", 1, 10, process(&n))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	cancel()

	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(1), n.Load())
}

func TestPool_QueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool("test", 1, 1, func(_ context.Context, _ testWork) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// first item occupies the worker, second fills the queue
	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.Eventually(t, func() bool { return pool.Stats().QueueDepth == 0 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Submit(testWork{id: 2}))

	err := pool.Submit(testWork{id: 3})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, sharedErrors.Is(err, sharedErrors.ErrQueueFull))
	assert.Equal(t, int64(1), pool.Stats().Dropped)

	close(block)
	require.NoError(t, pool.Stop(5*time.Second))
}

func TestPool_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var cancelled atomic.Bool
	pool := NewPool("test", 1, 1, func(ctx context.Context, _ testWork) error {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
		case <-release:
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(testWork{}))

	assert.ErrorIs(t, pool.Stop(20*time.Millisecond), ErrStopTimeout)
	assert.Eventually(t, cancelled.Load, time.Second, time.Millisecond)
}

func TestPool_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var n atomic.Int64
	pool := NewPool("intake", 1, 10, process(&n), WithMetrics[testWork](reg))
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{}))
	require.NoError(t, pool.Submit(testWork{fail: true}))
	require.NoError(t, pool.Stop(5*time.Second))

	assert.Equal(t, float64(2), testutil.ToFloat64(pool.metrics.submitted))
	assert.Equal(t, float64(2), testutil.ToFloat64(pool.metrics.processed))
	assert.Equal(t, float64(1), testutil.ToFloat64(pool.metrics.failed))

	stats := pool.Stats()
	assert.Equal(t, "intake", stats.Name)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPool_PanicCountsAsFailure(t *testing.T) {
	var n atomic.Int64
	pool := NewPool("dispatch", 1, 10, func(_ context.Context, w testWork) error {
		if w.fail {
			panic("sender exploded")
		}
		n.Add(1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{id: 1, fail: true}))
	require.NoError(t, pool.Submit(testWork{id: 2}))
	require.NoError(t, pool.Stop(5*time.Second))

	assert.Equal(t, int64(1), n.Load())
	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}
