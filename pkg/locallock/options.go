package locallock

import (
	"log/slog"
	"time"
)

const (
	// DefaultIdleWindow is how long an unheld, uncontended lock survives
	// before the sweep removes it.
	DefaultIdleWindow = 5 * time.Minute

	// DefaultMaxEntries bounds registry size regardless of idle window;
	// the oldest idle entry is evicted first when exceeded.
	DefaultMaxEntries = 100_000

	// DefaultSweepInterval is the cron cadence for the compaction pass
	// that backstops the idle-window expiry.
	DefaultSweepInterval = time.Minute
)

// Options configures a Registry.
type Options struct {
	// IdleWindow is how long an entry may sit unheld before it becomes
	// eligible for sweep. Default DefaultIdleWindow.
	IdleWindow time.Duration

	// MaxEntries caps registry size. Default DefaultMaxEntries.
	MaxEntries int

	// SweepInterval is the cron "@every" cadence for the background
	// compaction pass. Default DefaultSweepInterval.
	SweepInterval time.Duration

	// Logger receives sweep diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures a Registry at construction time.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		IdleWindow:    DefaultIdleWindow,
		MaxEntries:    DefaultMaxEntries,
		SweepInterval: DefaultSweepInterval,
		Logger:        slog.Default(),
	}
}

// WithIdleWindow overrides the idle eviction window.
func WithIdleWindow(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.IdleWindow = d
		}
	}
}

// WithMaxEntries overrides the registry size cap.
func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithSweepInterval overrides the background compaction cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.SweepInterval = d
		}
	}
}

// WithLogger overrides the logger. Passing nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
