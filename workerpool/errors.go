package workerpool

import (
	"errors"
	"fmt"
)

var (
	// ErrNoWorkers is returned by New when the worker count is not positive.
	ErrNoWorkers = errors.New("workerpool: worker count must be positive")

	// ErrPoolClosed is returned by Submit once Shutdown has begun.
	ErrPoolClosed = errors.New("workerpool: pool is shut down")

	ErrNilTask = errors.New("workerpool: nil task")
)

// TaskPanicError describes a panic recovered from a task body.
type TaskPanicError struct {
	Pool   string
	Worker int
	Value  any
	Stack  []byte
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("workerpool %s: task panicked on worker %d: %v", e.Pool, e.Worker, e.Value)
}

// Unwrap returns the panic value when it was itself an error.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
