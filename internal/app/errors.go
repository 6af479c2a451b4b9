package service

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds for pipeline errors. The HTTP layer maps these onto the
// wire-level taxonomy.
var (
	// ErrValidation wraps a validate.* kind; the caller's input is at fault.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited reports the caller must back off.
	ErrRateLimited = errors.New("rate limited")

	// ErrDuplicate reports a replayed or duplicate submission.
	ErrDuplicate = errors.New("duplicate submission")

	// ErrStorage reports a transient storage failure; safe to retry.
	ErrStorage = errors.New("storage unavailable")

	// ErrNotStarted reports use of the service before Start.
	ErrNotStarted = errors.New("service not started")
)

// RateLimitedError carries the retry-after hint alongside ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited; retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
