// Package demo drives a thread pool with a synthetic workload: a number of
// sleeping tasks submitted by concurrent producers.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/memduhb/custom-thread-pool/internal/config"
	"github.com/memduhb/custom-thread-pool/workerpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Summary reports what happened to the workload.
type Summary struct {
	Submitted int64
	Rejected  int64
	Executed  int64
	Elapsed   time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("submitted=%d rejected=%d executed=%d elapsed=%s",
		s.Submitted, s.Rejected, s.Executed, s.Elapsed.Round(time.Millisecond))
}

// Run submits cfg.Tasks tasks to pool from cfg.Producers goroutines, then
// shuts the pool down and waits for the queue to drain. Task i is
// submitted by producer i%Producers, so each producer submits in ascending
// order. Cancelling ctx stops further submissions; tasks already accepted
// still run. Run owns the pool from here on: it is always shut down on
// return.
func Run(ctx context.Context, pool *workerpool.ThreadPool, cfg config.DemoConfig, log *slog.Logger) (Summary, error) {
	defer pool.Shutdown()

	var (
		sum      Summary
		executed atomic.Int64
		start    = time.Now()
	)

	var limiter *rate.Limiter
	if cfg.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	var submitted, rejected atomic.Int64
	for p := 0; p < cfg.Producers; p++ {
		g.Go(func() error {
			for id := p; id < cfg.Tasks; id += cfg.Producers {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				} else if err := gctx.Err(); err != nil {
					return err
				}

				err := pool.Submit(sleepTask(id, cfg.TaskDuration, &executed, log))
				if errors.Is(err, workerpool.ErrPoolClosed) {
					rejected.Add(1)
					continue
				}
				if err != nil {
					return fmt.Errorf("submitting task %d: %w", id, err)
				}
				submitted.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		log.Warn("submission interrupted, draining accepted tasks", "submitted", submitted.Load())
		err = nil
	}

	pool.Shutdown()

	sum.Submitted = submitted.Load()
	sum.Rejected = rejected.Load()
	sum.Executed = executed.Load()
	sum.Elapsed = time.Since(start)
	return sum, err
}

func sleepTask(id int, d time.Duration, executed *atomic.Int64, log *slog.Logger) workerpool.Task {
	return func() {
		log.Info("task starting", "task", id)
		time.Sleep(d)
		executed.Add(1)
		log.Info("task done", "task", id)
	}
}
