package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TOPPLE_CONFIG is set
//  3. env (prefix TOPPLE_)
func Load(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TOPPLE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: TOPPLE_ADDR, TOPPLE_LEADERBOARD_SIZE, ...
	// Keys keep their underscores to match the koanf tags on the struct.
	envProvider := env.Provider("TOPPLE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "topple_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the service cannot run with.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.LedgerPath) == "":
		return fmt.Errorf("%w: ledger_path must not be empty", ErrInvalidConfig)
	case c.LeaderboardSize < 1:
		return fmt.Errorf("%w: leaderboard_size must be at least 1", ErrInvalidConfig)
	case c.MaxTopLimit < 1:
		return fmt.Errorf("%w: max_top_limit must be at least 1", ErrInvalidConfig)
	case c.RateLimitWindowSeconds < 1 || c.RateLimitMaxRequests < 1:
		return fmt.Errorf("%w: rate limit window and max requests must be positive", ErrInvalidConfig)
	case c.MinSurvivalSeconds <= 0 || c.MaxSurvivalSeconds <= c.MinSurvivalSeconds:
		return fmt.Errorf("%w: survival bounds must satisfy 0 < min < max", ErrInvalidConfig)
	case c.ClockSkewMinutes < 0:
		return fmt.Errorf("%w: clock_skew_minutes must not be negative", ErrInvalidConfig)
	case c.RetentionDays < 1:
		return fmt.Errorf("%w: retention_days must be at least 1", ErrInvalidConfig)
	}
	return nil
}
