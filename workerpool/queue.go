package workerpool

import (
	"sync"

	"github.com/eapache/queue"
)

// taskQueue is an unbounded FIFO of pending tasks. The mutex guards both
// the buffer and the closed flag; cond is signalled whenever either changes.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  *queue.Queue
	closed bool

	// onLen observes the queue length after every change, under mu.
	onLen func(n int)
}

func newTaskQueue(onLen func(n int)) *taskQueue {
	q := &taskQueue{
		tasks: queue.New(),
		onLen: onLen,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends task at the tail and wakes one waiting worker. It reports
// false without enqueueing once the queue has been closed.
func (q *taskQueue) push(task Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks.Add(task)
	q.observe()
	q.mu.Unlock()

	q.cond.Signal()
	return true
}

// takeOrWait blocks until a task is available or the queue is closed and
// empty. ok is false only in the latter case.
func (q *taskQueue) takeOrWait() (task Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.tasks.Length() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.tasks.Length() == 0 {
		return nil, false
	}

	task = q.tasks.Remove().(Task)
	q.observe()
	return task, true
}

// close sets the termination flag and wakes every waiter. Only the first
// call returns true.
func (q *taskQueue) close() bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
	return true
}

func (q *taskQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Length()
}

func (q *taskQueue) observe() {
	if q.onLen != nil {
		q.onLen(q.tasks.Length())
	}
}
