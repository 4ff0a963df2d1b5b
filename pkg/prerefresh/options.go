package prerefresh

import (
	"log/slog"
	"time"
)

const (
	// DefaultWorkers is the fixed worker goroutine count.
	DefaultWorkers = 4

	// DefaultQueueDepth is the buffered job queue capacity before the
	// caller-runs policy kicks in.
	DefaultQueueDepth = 256

	// DefaultShutdownGrace bounds how long Shutdown waits for
	// in-flight jobs to finish before cancelling them.
	DefaultShutdownGrace = 10 * time.Second
)

// Options configures a Pool.
type Options struct {
	// Workers is the number of worker goroutines. Default DefaultWorkers.
	Workers int

	// QueueDepth bounds the buffered job queue. Default DefaultQueueDepth.
	QueueDepth int

	// ShutdownGrace bounds how long Shutdown waits before force
	// cancelling outstanding jobs. Default DefaultShutdownGrace.
	ShutdownGrace time.Duration

	// Logger receives drop/reject/panic diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Option configures a Pool at construction time.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Workers:       DefaultWorkers,
		QueueDepth:    DefaultQueueDepth,
		ShutdownGrace: DefaultShutdownGrace,
		Logger:        slog.Default(),
	}
}

// WithWorkers overrides the worker goroutine count.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithQueueDepth overrides the buffered job queue capacity.
func WithQueueDepth(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.QueueDepth = n
		}
	}
}

// WithShutdownGrace overrides the shutdown grace period.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ShutdownGrace = d
		}
	}
}

// WithLogger overrides the logger. Passing nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
