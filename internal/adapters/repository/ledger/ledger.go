// Package ledger defines the append-only score store and its SQLite backing.
//
// The ledger is the source of truth for every accepted score. Records are
// immutable once written and leave the store only through retention pruning.
package ledger

import (
	"context"
	"time"

	"github.com/okian/topple/internal/domain/model"
)

// Ledger provides durable storage for accepted score records.
type Ledger interface {
	// Append stores a new, already-validated record. It never rejects on
	// business grounds; only storage failures propagate.
	Append(ctx context.Context, rec model.ScoreRecord) error

	// BestFor returns the highest survival time ever recorded for a player.
	// Returns ErrNoScores when the player has no records.
	BestFor(ctx context.Context, playerTag string) (model.ScoreRecord, error)

	// InRange returns all records with server timestamp in [from, to].
	InRange(ctx context.Context, from, to time.Time) ([]model.ScoreRecord, error)

	// SubmissionCount returns how many records a player has in the ledger.
	SubmissionCount(ctx context.Context, playerTag string) (int, error)

	// BestPerPlayer returns each player's best record, the input to a
	// leaderboard rebuild. Ties on survival time resolve to the earliest
	// server timestamp.
	BestPerPlayer(ctx context.Context) ([]model.ScoreRecord, error)

	// Prune deletes records older than the horizon and reports how many.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Count returns the total number of records retained.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying storage.
	Close() error
}
