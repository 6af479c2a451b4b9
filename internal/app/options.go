package service

import (
	"time"

	"github.com/okian/topple/internal/adapters/repository/ledger"
	"github.com/okian/topple/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLedgerPath sets the SQLite database file backing the ledger.
func WithLedgerPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.ledgerPath = path
		}
	}
}

// WithLedger injects a ledger implementation, bypassing WithLedgerPath.
// Used by tests.
func WithLedger(l ledger.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.injectedLedger = l
		}
	}
}

// WithBoardSize caps the leaderboard at n slots.
func WithBoardSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.boardSize = n
		}
	}
}

// WithRateLimit sets the sliding window length and per-client ceiling.
func WithRateLimit(window time.Duration, maxRequests int) Option {
	return func(s *Service) {
		if window > 0 && maxRequests > 0 {
			s.rateWindow = window
			s.rateMax = maxRequests
		}
	}
}

// WithSurvivalBounds sets the accepted survival-time range.
func WithSurvivalBounds(minSeconds, maxSeconds float64) Option {
	return func(s *Service) {
		if minSeconds > 0 && maxSeconds > minSeconds {
			s.minSurvival = minSeconds
			s.maxSurvival = maxSeconds
		}
	}
}

// WithClockSkew sets the accepted client clock drift.
func WithClockSkew(skew time.Duration) Option {
	return func(s *Service) {
		if skew > 0 {
			s.clockSkew = skew
		}
	}
}

// WithRetention sets the ledger retention horizon and prune cadence.
func WithRetention(horizon, interval time.Duration) Option {
	return func(s *Service) {
		if horizon > 0 && interval > 0 {
			s.retention = horizon
			s.pruneInterval = interval
		}
	}
}

// WithQueueSize bounds the reconcile queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWorkerCount sets the number of reconcile workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithReplayCacheSize bounds the duplicate-submission cache.
func WithReplayCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.replaySize = n
		}
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
