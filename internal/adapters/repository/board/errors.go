package board

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	// ErrNotRanked reports that a player holds no leaderboard slot.
	ErrNotRanked = errors.New("player not ranked")

	// ErrInvalidLimit reports a non-positive top-N limit.
	ErrInvalidLimit = errors.New("invalid leaderboard limit")

	// ErrInconsistent reports a violated table invariant. It never surfaces
	// to API callers; detection schedules a rebuild from the ledger.
	ErrInconsistent = errors.New("inconsistent leaderboard state")
)
