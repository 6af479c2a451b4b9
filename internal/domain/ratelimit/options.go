package ratelimit

import "time"

// Option applies a configuration option to the Limiter.
type Option func(*Limiter)

// WithWindow sets the trailing window length.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithMaxRequests sets the per-client request ceiling inside the window.
func WithMaxRequests(maxRequests int) Option {
	return func(l *Limiter) {
		if maxRequests > 0 {
			l.maxRequests = maxRequests
		}
	}
}

// WithGracePeriod sets how long past the window an idle client is kept.
func WithGracePeriod(grace time.Duration) Option {
	return func(l *Limiter) {
		if grace > 0 {
			l.gracePeriod = grace
		}
	}
}

// WithCleanupInterval sets how often the idle-client sweeper runs.
func WithCleanupInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		if interval > 0 {
			l.cleanupInterval = interval
		}
	}
}

// WithClock injects a time source. Used by tests to drive the window
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}
