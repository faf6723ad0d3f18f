package workerpool

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, workers int, opts ...Option) *ThreadPool {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	pool, err := New(workers, opts...)
	require.NoError(t, err)
	require.NotNil(t, pool)
	return pool
}

func TestNew_RejectsNonPositiveWorkers(t *testing.T) {
	tests := []struct {
		name    string
		workers int
	}{
		{name: "zero workers", workers: 0},
		{name: "negative workers", workers: -3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pool, err := New(tc.workers)

			assert.ErrorIs(t, err, ErrNoWorkers)
			assert.Nil(t, pool)
		})
	}
}

func TestNew_DefaultName(t *testing.T) {
	pool := newTestPool(t, 1)
	defer pool.Shutdown()

	assert.Regexp(t, `^pool-[0-9a-f]{8}$`, pool.Name())

	named := newTestPool(t, 1, WithName("ingest"))
	defer named.Shutdown()
	assert.Equal(t, "ingest", named.Name())
}

func TestThreadPool_RunsEveryTaskExactlyOnce(t *testing.T) {
	pool := newTestPool(t, 4)

	const taskCount = 1000
	var counter atomic.Int64
	hits := make([]atomic.Int32, taskCount)

	for i := 0; i < taskCount; i++ {
		n := i
		require.NoError(t, pool.Submit(func() {
			counter.Add(1)
			hits[n].Add(1)
		}))
	}

	pool.Shutdown()

	assert.Equal(t, int64(taskCount), counter.Load())
	for i := range hits {
		assert.Equal(t, int32(1), hits[i].Load(), "task %d", i)
	}
}

func TestThreadPool_SingleWorkerPreservesSubmissionOrder(t *testing.T) {
	pool := newTestPool(t, 1)

	var (
		mu  sync.Mutex
		log []int
	)
	const taskCount = 200
	for i := 0; i < taskCount; i++ {
		n := i
		require.NoError(t, pool.Submit(func() {
			mu.Lock()
			log = append(log, n)
			mu.Unlock()
		}))
	}

	pool.Shutdown()

	require.Len(t, log, taskCount)
	for i, n := range log {
		assert.Equal(t, i, n)
	}
}

func TestThreadPool_RunsTasksInParallel(t *testing.T) {
	pool := newTestPool(t, 4)

	var running, peak atomic.Int32
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(func() {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			running.Add(-1)
		}))
	}

	pool.Shutdown()

	assert.GreaterOrEqual(t, peak.Load(), int32(2), "expected overlapping task execution")
	assert.LessOrEqual(t, peak.Load(), int32(4), "more tasks ran at once than there are workers")
}

func TestThreadPool_ShutdownDrainsQueuedTasks(t *testing.T) {
	const workers = 2
	pool := newTestPool(t, workers)

	gate := make(chan struct{})
	var started sync.WaitGroup
	started.Add(workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, pool.Submit(func() {
			started.Done()
			<-gate
		}))
	}
	// Every worker is now parked on the gate, so nothing below has started.
	started.Wait()

	const queued = 50
	var counter atomic.Int32
	for i := 0; i < queued; i++ {
		require.NoError(t, pool.Submit(func() { counter.Add(1) }))
	}

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown returned while tasks were still running")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(0), counter.Load())

	close(gate)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return after the queue drained")
	}

	assert.Equal(t, int32(queued), counter.Load())
}

func TestThreadPool_ConcurrentProducers(t *testing.T) {
	pool := newTestPool(t, 4)

	const (
		producers = 8
		perProd   = 500
	)
	var counter atomic.Int64

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for i := 0; i < perProd; i++ {
				if err := pool.Submit(func() { counter.Add(1) }); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	pool.Shutdown()

	assert.Equal(t, int64(producers*perProd), counter.Load())
}

func TestThreadPool_SubmitRacingShutdown(t *testing.T) {
	pool := newTestPool(t, 3)

	var accepted, executed atomic.Int64
	var g errgroup.Group
	for p := 0; p < 4; p++ {
		g.Go(func() error {
			for i := 0; i < 1000; i++ {
				err := pool.Submit(func() { executed.Add(1) })
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrPoolClosed):
					return nil
				default:
					return err
				}
			}
			return nil
		})
	}

	time.Sleep(time.Millisecond)
	pool.Shutdown()
	require.NoError(t, g.Wait())

	assert.Equal(t, accepted.Load(), executed.Load(), "every accepted task must run exactly once")
}

func TestThreadPool_SubmitAfterShutdown(t *testing.T) {
	pool := newTestPool(t, 2)
	pool.Shutdown()

	var ran atomic.Bool
	err := pool.Submit(func() { ran.Store(true) })

	assert.ErrorIs(t, err, ErrPoolClosed)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestThreadPool_SubmitNil(t *testing.T) {
	pool := newTestPool(t, 1)
	defer pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(nil), ErrNilTask)
}

func TestThreadPool_ShutdownIsIdempotent(t *testing.T) {
	pool := newTestPool(t, 2)

	var counter atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func() {
			time.Sleep(5 * time.Millisecond)
			counter.Add(1)
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Shutdown()
			// Every caller returns only after the drain has finished.
			assert.Equal(t, int32(10), counter.Load())
		}()
	}
	wg.Wait()

	pool.Shutdown()
}

func TestThreadPool_PanicDoesNotKillWorker(t *testing.T) {
	var (
		mu     sync.Mutex
		panics []*TaskPanicError
	)
	pool := newTestPool(t, 1, WithName("panicky"), WithPanicHandler(func(err *TaskPanicError) {
		mu.Lock()
		panics = append(panics, err)
		mu.Unlock()
	}))

	var counter atomic.Int32
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(func() { counter.Add(1) }))
	require.NoError(t, pool.Submit(func() { panic(io.ErrUnexpectedEOF) }))
	require.NoError(t, pool.Submit(func() { counter.Add(1) }))

	pool.Shutdown()

	// The single worker survived both panics and ran the tasks behind them.
	assert.Equal(t, int32(2), counter.Load())

	require.Len(t, panics, 2)
	assert.Equal(t, "boom", panics[0].Value)
	assert.Equal(t, "panicky", panics[0].Pool)
	assert.Equal(t, 0, panics[0].Worker)
	assert.NotEmpty(t, panics[0].Stack)
	assert.Contains(t, panics[0].Error(), "boom")
	assert.Nil(t, panics[0].Unwrap())

	assert.ErrorIs(t, panics[1], io.ErrUnexpectedEOF)
}

func TestThreadPool_LogsPanics(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &mu}, nil))

	pool, err := New(1, WithName("logged"), WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, pool.Submit(func() { panic("kaput") }))
	pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	out := buf.String()
	assert.Contains(t, out, "task panicked")
	assert.Contains(t, out, "pool=logged")
	assert.Contains(t, out, "panic=kaput")
	assert.Contains(t, out, "thread pool shut down")
}

func TestThreadPool_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	const (
		workers   = 4
		taskCount = 100
		taskSleep = 50 * time.Millisecond
	)
	pool := newTestPool(t, workers)

	var (
		mu  sync.Mutex
		log []int
	)
	start := time.Now()
	for i := 0; i < taskCount; i++ {
		n := i
		require.NoError(t, pool.Submit(func() {
			time.Sleep(taskSleep)
			mu.Lock()
			log = append(log, n)
			mu.Unlock()
		}))
	}
	pool.Shutdown()
	elapsed := time.Since(start)

	require.Len(t, log, taskCount)
	seen := make(map[int]int, taskCount)
	for _, n := range log {
		seen[n]++
	}
	for i := 0; i < taskCount; i++ {
		assert.Equal(t, 1, seen[i], "task %d", i)
	}

	ideal := time.Duration((taskCount+workers-1)/workers) * taskSleep
	assert.GreaterOrEqual(t, elapsed, ideal)
	assert.Less(t, elapsed, 3*ideal, "tasks do not appear to run on all workers")
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
