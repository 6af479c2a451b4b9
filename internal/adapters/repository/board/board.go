// Package board maintains the bounded top-N leaderboard derived from the
// score ledger.
package board

import (
	"context"
	"time"

	"github.com/okian/topple/internal/domain/model"
)

// Slot is one ranked entry in the leaderboard.
type Slot struct {
	Rank            int       // 1-based, contiguous
	PlayerTag       string    // one slot per player
	SurvivalTime    float64   // the player's best score
	SubmissionID    string    // the ledger record that earned the slot
	SubmittedAt     time.Time // server timestamp of that record; tie-break key
	SubmissionCount int       // cumulative submissions by the player
	UpdatedAt       time.Time // when the slot last changed
}

// Store provides read/write access to the ranked table.
//
// Mutations (Update, Rebuild) are serialized against each other; reads
// operate on an immutable snapshot and never block behind writers.
type Store interface {
	// WouldQualify reports whether a score would earn a slot right now.
	WouldQualify(ctx context.Context, survivalTime float64) bool

	// Update folds an accepted record into the table. Returns the player's
	// new slot and true when the table changed; the zero Slot and false when
	// the score did not qualify or did not improve the player's slot.
	Update(ctx context.Context, rec model.ScoreRecord, submissionCount int) (Slot, bool, error)

	// Top returns the first n slots ordered by rank ascending.
	Top(ctx context.Context, n int) ([]Slot, error)

	// RankOf returns the player's slot. Returns ErrNotRanked when the player
	// holds no slot; not being ranked is a valid state, not a failure.
	RankOf(ctx context.Context, playerTag string) (Slot, error)

	// Rebuild recomputes the whole table from the ledger's best-per-player
	// scores and atomically replaces it. Returns the number of slots.
	Rebuild(ctx context.Context) (int, error)

	// Size returns the current number of slots.
	Size(ctx context.Context) int

	// LastUpdated returns when the table last changed.
	LastUpdated(ctx context.Context) time.Time

	// ETag returns an opaque token derived from the table's content, for
	// conditional HTTP caching.
	ETag(ctx context.Context) string
}

// BestSource is the ledger surface a rebuild reads from.
type BestSource interface {
	BestPerPlayer(ctx context.Context) ([]model.ScoreRecord, error)
	SubmissionCount(ctx context.Context, playerTag string) (int, error)
}
