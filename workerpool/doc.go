// Package workerpool provides a fixed-size thread pool that runs
// fire-and-forget tasks on long-lived worker goroutines.
//
// Typical usage:
//
//	pool, err := workerpool.New(4,
//	    workerpool.WithName("ingest"),
//	    workerpool.WithMetrics(workerpool.NewThreadPoolMetrics(nil)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown()
//
//	for i := 0; i < 10; i++ {
//	    n := i
//	    _ = pool.Submit(func() {
//	        fmt.Println("processing", n)
//	    })
//	}
//
// Tasks wait in an unbounded FIFO queue and are handed to workers in
// submission order. Submit never blocks. Shutdown drains the queue: every
// accepted task runs before Shutdown returns, and submissions made after
// Shutdown has begun fail with ErrPoolClosed.
//
// A panic inside a task is recovered at the worker boundary, logged,
// counted in the metrics and passed to the PanicHandler if one is set.
// The worker then carries on with the next task.
package workerpool
