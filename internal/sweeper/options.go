package sweeper

import (
	"log/slog"
	"time"
)

// Option configures a Sweeper.
type Option func(*options)

type options struct {
	interval        time.Duration
	shutdownTimeout time.Duration
	prefixes        []string
	logger          *slog.Logger
	observer        func(evicted int, err error)
}

// WithInterval sets how often a sweep runs.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for an in-flight sweep.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithPrefixes adds key namespaces to sweep.
func WithPrefixes(prefixes ...string) Option {
	return func(o *options) {
		for _, p := range prefixes {
			if p != "" {
				o.prefixes = append(o.prefixes, p)
			}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers a callback invoked after every sweep.
func WithObserver(fn func(evicted int, err error)) Option {
	return func(o *options) {
		o.observer = fn
	}
}
