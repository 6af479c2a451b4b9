// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers file and env on top.
// - All loading functions accept context.Context as the first parameter.
// - External errors are wrapped via this package's sentinel kinds.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LedgerPath is the SQLite database file backing the score ledger.
	LedgerPath string `koanf:"ledger_path"`

	// LeaderboardSize caps the number of ranked slots (top N).
	LeaderboardSize int `koanf:"leaderboard_size"`

	// MaxTopLimit caps GET /scores/top?count.
	MaxTopLimit int `koanf:"max_top_limit"`

	// RateLimitWindowSeconds is the trailing rate-limit window length.
	RateLimitWindowSeconds int `koanf:"rate_limit_window_seconds"`

	// RateLimitMaxRequests is the per-client request ceiling inside the window.
	RateLimitMaxRequests int `koanf:"rate_limit_max_requests"`

	// MinSurvivalSeconds and MaxSurvivalSeconds bound plausible scores.
	MinSurvivalSeconds float64 `koanf:"min_survival_seconds"`
	MaxSurvivalSeconds float64 `koanf:"max_survival_seconds"`

	// ClockSkewMinutes tolerates client/server clock drift on submissions.
	ClockSkewMinutes int `koanf:"clock_skew_minutes"`

	// RetentionDays is the ledger retention horizon for pruning.
	RetentionDays int `koanf:"retention_days"`

	// PruneIntervalMinutes is how often the retention pruner runs.
	PruneIntervalMinutes int `koanf:"prune_interval_minutes"`

	// QueueSize bounds the reconcile queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of reconcile workers.
	WorkerCount int `koanf:"worker_count"`

	// ReplayCacheSize bounds the duplicate-submission cache.
	ReplayCacheSize int `koanf:"replay_cache_size"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		LedgerPath:             "topple.db",
		LeaderboardSize:        10,
		MaxTopLimit:            50,
		RateLimitWindowSeconds: 60,
		RateLimitMaxRequests:   10,
		MinSurvivalSeconds:     0.05,
		MaxSurvivalSeconds:     20.0,
		ClockSkewMinutes:       10,
		RetentionDays:          90,
		PruneIntervalMinutes:   60,
		QueueSize:              10_000,
		WorkerCount:            2,
		ReplayCacheSize:        100_000,
	}
}
