package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	// ErrNoScores reports that a player has no recorded scores.
	ErrNoScores = errors.New("no scores recorded for player")

	// ErrStorage wraps failures of the underlying store. Callers treat these
	// as transient and retryable.
	ErrStorage = errors.New("ledger storage failure")
)
