package workerpool

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task represents a unit of work
type Task func()

// ThreadPool runs submitted tasks on a fixed set of worker goroutines.
// Tasks leave the queue in submission order; completion order depends on
// how long each task runs.
type ThreadPool struct {
	name    string
	workers int
	queue   *taskQueue
	wg      sync.WaitGroup
	once    sync.Once

	logger       *slog.Logger
	metrics      *ThreadPoolMetrics
	panicHandler PanicHandler
}

// New creates a thread pool and starts workers goroutines. It does not
// wait for them to be scheduled; tasks submitted in the meantime are
// buffered. A workers value below one yields ErrNoWorkers, since such a
// pool could never run anything.
func New(workers int, opts ...Option) (*ThreadPool, error) {
	if workers <= 0 {
		return nil, ErrNoWorkers
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = "pool-" + uuid.NewString()[:8]
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	tp := &ThreadPool{
		name:         o.name,
		workers:      workers,
		logger:       o.logger.With("pool", o.name),
		metrics:      o.metrics,
		panicHandler: o.panicHandler,
	}

	var onLen func(int)
	if tp.metrics != nil {
		onLen = func(n int) {
			tp.metrics.SetQueueSize(tp.name, n)
		}
		tp.metrics.SetWorkerCount(tp.name, workers)
		tp.metrics.SetQueueSize(tp.name, 0)
		tp.metrics.SetActiveWorkers(tp.name, 0)
	}
	tp.queue = newTaskQueue(onLen)

	tp.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go tp.worker(i)
	}

	tp.logger.Debug("thread pool started", "workers", workers)
	return tp, nil
}

// worker is the goroutine that processes tasks
func (tp *ThreadPool) worker(id int) {
	defer func() {
		if tp.metrics != nil {
			tp.metrics.AddWorkerCount(tp.name, -1)
		}
		tp.logger.Debug("worker terminated", "worker", id)
		tp.wg.Done()
	}()

	for {
		task, ok := tp.queue.takeOrWait()
		if !ok {
			return
		}
		tp.execute(id, task)
	}
}

// execute runs task with no pool lock held. A panic is recovered and
// reported so the worker can go back to waiting.
func (tp *ThreadPool) execute(id int, task Task) {
	if tp.metrics != nil {
		tp.metrics.AddActiveWorkers(tp.name, 1)
	}
	start := time.Now()

	defer func() {
		r := recover()

		if tp.metrics != nil {
			tp.metrics.ObserveTaskDuration(tp.name, time.Since(start).Seconds())
			tp.metrics.AddActiveWorkers(tp.name, -1)
		}

		if r == nil {
			if tp.metrics != nil {
				tp.metrics.RecordTaskCompleted(tp.name, StatusSuccess)
			}
			return
		}

		err := &TaskPanicError{
			Pool:   tp.name,
			Worker: id,
			Value:  r,
			Stack:  debug.Stack(),
		}
		if tp.metrics != nil {
			tp.metrics.RecordTaskFailed(tp.name)
			tp.metrics.RecordTaskCompleted(tp.name, StatusPanic)
		}
		tp.logger.Error("task panicked", "worker", id, "panic", r)
		if tp.panicHandler != nil {
			tp.panicHandler(err)
		}
	}()

	task()
}

// Submit enqueues task for execution by the next free worker. It never
// blocks on a full queue. Once Shutdown has begun, Submit returns
// ErrPoolClosed and the task is dropped; every task for which Submit
// returned nil is run exactly once before Shutdown returns.
func (tp *ThreadPool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	if !tp.queue.push(task) {
		if tp.metrics != nil {
			tp.metrics.RecordTaskRejected(tp.name)
		}
		return ErrPoolClosed
	}

	if tp.metrics != nil {
		tp.metrics.RecordTaskSubmitted(tp.name)
	}
	return nil
}

// Shutdown stops accepting tasks, lets the workers drain the queue and
// waits for all of them to exit. Running tasks are never interrupted, so a
// task that does not return blocks Shutdown forever. Calling Shutdown again
// waits for the first call to finish.
func (tp *ThreadPool) Shutdown() {
	tp.once.Do(func() {
		start := time.Now()
		tp.logger.Info("shutting down thread pool", "pending", tp.queue.size())

		tp.queue.close()
		tp.wg.Wait()

		tp.logger.Info("thread pool shut down", "elapsed", time.Since(start))
	})
}

// Name returns the pool name used in logs and metrics.
func (tp *ThreadPool) Name() string {
	return tp.name
}
