package worker

import (
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
)

func newTestPool(t *testing.T, n int) *Pool {
	t.Helper()
	p, err := NewPoolWithConfig(PoolConfig{
		Name:       t.Name(),
		NumWorkers: n,
		Logger:     logger.New(io.Discard, logger.LevelError),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewPoolInvalidSize(t *testing.T) {
	before := runtime.NumGoroutine()

	for _, n := range []int{0, -1, -5} {
		p, err := NewPool(n)
		require.ErrorIs(t, err, ErrInvalidSize)
		require.Nil(t, p)
	}

	require.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestNewPoolStartsWorkers(t *testing.T) {
	p := newTestPool(t, 4)

	require.Equal(t, 4, p.NumWorkers())
	require.Equal(t, 4, p.Workers())
	require.Equal(t, 4, p.Alive())
	require.True(t, p.Running())
	require.NotEmpty(t, p.ID())
	require.Equal(t, t.Name(), p.Name())
}

func TestNewPoolDefaultName(t *testing.T) {
	p, err := NewPoolWithConfig(PoolConfig{NumWorkers: 1, Logger: logger.New(io.Discard, logger.LevelInfo)})
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, p.ID(), p.Name())
}

func TestPoolSingleWorkerOrder(t *testing.T) {
	p := newTestPool(t, 1)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, p.Submit(func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}))
	}

	p.Shutdown()
	require.Equal(t, []string{"A", "B", "C"}, order)
}

func TestPoolExecutesEveryTaskOnce(t *testing.T) {
	p := newTestPool(t, 5)

	var mu sync.Mutex
	seen := make(map[int]int)
	for i := range 100 {
		require.NoError(t, p.Submit(func() {
			mu.Lock()
			seen[i]++
			mu.Unlock()
		}))
	}

	p.Shutdown()

	require.Len(t, seen, 100)
	for i, count := range seen {
		require.Equal(t, 1, count, "task %d", i)
	}
	require.Equal(t, 0, p.QueueSize())
	require.Equal(t, 0, p.Workers())
	require.Equal(t, 0, p.Alive())
	require.False(t, p.Running())
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p, err := NewPoolWithConfig(PoolConfig{
		Name:       "closed",
		NumWorkers: 2,
		Logger:     logger.New(io.Discard, logger.LevelInfo),
		Metrics:    m,
	})
	require.NoError(t, err)
	p.Shutdown()

	var ran atomic.Bool
	err = p.Submit(func() { ran.Store(true) })
	require.ErrorIs(t, err, ErrPoolClosed)
	require.Equal(t, 0, p.QueueSize())
	require.False(t, ran.Load())
	require.Equal(t, uint64(1), m.Snapshot("closed").Rejected)
}

func TestPoolSubmitNil(t *testing.T) {
	p := newTestPool(t, 1)
	require.ErrorIs(t, p.Submit(nil), ErrNilTask)
	require.Equal(t, 0, p.QueueSize())
}

func TestPoolShutdownWaitsForRunningTask(t *testing.T) {
	p := newTestPool(t, 2)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Shutdown")
	}
	require.True(t, finished.Load())
	require.Equal(t, 0, p.Alive())
}

func TestPoolShutdownDrainsQueuedTasks(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	var executed atomic.Int32
	require.NoError(t, p.Submit(func() {
		<-release
		executed.Add(1)
	}))
	for range 10 {
		require.NoError(t, p.Submit(func() { executed.Add(1) }))
	}

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()

	require.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)
	require.ErrorIs(t, p.Submit(func() { executed.Add(100) }), ErrPoolClosed)

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Shutdown")
	}
	require.Equal(t, int32(11), executed.Load())
}

func TestPoolPanicIsolated(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	bus := events.NewBus()
	sub := bus.Subscribe()

	p, err := NewPoolWithConfig(PoolConfig{
		Name:       "panics",
		NumWorkers: 1,
		Logger:     logger.New(io.Discard, logger.LevelInfo),
		Metrics:    m,
		Events:     bus,
	})
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() { panic("boom") }))
	require.NoError(t, p.Submit(func() { ran.Store(true) }))
	p.Shutdown()

	require.True(t, ran.Load(), "worker should survive a panicking task")
	snap := m.Snapshot("panics")
	require.Equal(t, uint64(1), snap.Panicked)
	require.Equal(t, uint64(1), snap.Completed)

	var panicked *events.Event
	for len(sub) > 0 {
		ev := <-sub
		if ev.Type == events.EventTaskPanicked {
			panicked = &ev
		}
	}
	require.NotNil(t, panicked)
	require.Contains(t, panicked.Data.Error, "boom")
	require.Equal(t, 1, panicked.Data.WorkerID)
}

func TestPoolGoexitTaskDoesNotHangShutdown(t *testing.T) {
	p := newTestPool(t, 2)

	require.NoError(t, p.Submit(func() { runtime.Goexit() }))
	require.Eventually(t, func() bool { return p.Alive() == 1 }, time.Second, time.Millisecond)

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() { ran.Store(true) }))

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Shutdown")
	}
	require.True(t, ran.Load())
	require.Equal(t, 0, p.Alive())
}

func TestPoolShutdownRepeatedAndConcurrent(t *testing.T) {
	p := newTestPool(t, 3)

	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			p.Shutdown()
			if p.Alive() != 0 {
				return errors.New("worker alive after Shutdown returned")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	p.Shutdown()
	require.NoError(t, p.Close())
	require.Equal(t, 0, p.Workers())
}

func TestPoolLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()

	p, err := NewPoolWithConfig(PoolConfig{
		NumWorkers: 3,
		Logger:     logger.New(io.Discard, logger.LevelInfo),
		Events:     bus,
	})
	require.NoError(t, err)
	p.Shutdown()

	var types []events.EventType
	for len(sub) > 0 {
		ev := <-sub
		require.Equal(t, p.ID(), ev.PoolID)
		types = append(types, ev.Type)
	}

	require.Len(t, types, 6)
	require.Equal(t, events.EventPoolStarted, types[0])
	require.Equal(t, events.EventPoolStopping, types[1])
	for _, typ := range types[2:5] {
		require.Equal(t, events.EventWorkerExited, typ)
	}
	require.Equal(t, events.EventPoolStopped, types[5])
}

func TestPoolConcurrentSubmitRacingShutdown(t *testing.T) {
	p := newTestPool(t, 4)

	var accepted, executed, rejected atomic.Int64
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for {
				err := p.Submit(func() { executed.Add(1) })
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrPoolClosed):
					rejected.Add(1)
					return nil
				default:
					return err
				}
			}
		})
	}

	require.Eventually(t, func() bool { return accepted.Load() > 1000 }, 5*time.Second, time.Millisecond)
	p.Shutdown()
	require.NoError(t, g.Wait())

	require.Equal(t, accepted.Load(), executed.Load())
	require.Equal(t, int64(8), rejected.Load())
	require.Equal(t, 0, p.QueueSize())
	require.Equal(t, 0, p.Alive())
}
