package workerpool

import (
	"log/slog"
)

// PanicHandler receives panics recovered from task bodies. It runs on the
// worker goroutine that executed the task and must not panic itself.
type PanicHandler func(*TaskPanicError)

type options struct {
	name         string
	logger       *slog.Logger
	metrics      *ThreadPoolMetrics
	panicHandler PanicHandler
}

// Option configures a ThreadPool.
type Option func(*options)

// WithName sets the pool name used in logs and as the metrics label.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *ThreadPoolMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithPanicHandler installs a hook for panics raised inside tasks.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) {
		o.panicHandler = h
	}
}
