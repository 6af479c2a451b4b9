// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Submission is a raw score submission as received from a client,
// before validation.
type Submission struct {
	PlayerTag        string    // 1-3 uppercase alphanumerics
	SurvivalTime     float64   // seconds the structure stayed standing
	SessionSignature string    // 64-char hex token from the game session
	ClientTimestamp  string    // RFC3339, as reported by the client
	ClientID         string    // network address used for rate limiting
	ReceivedAt       time.Time // server receive time
}

// ScoreRecord is an accepted score. Immutable once written; deleted only
// by retention pruning.
type ScoreRecord struct {
	SubmissionID     string
	PlayerTag        string
	SurvivalTime     float64
	SessionSignature string
	ClientTimestamp  time.Time
	ServerTimestamp  time.Time
}

// NewScoreRecord builds a ScoreRecord for a validated submission, assigning
// the submission id and server timestamp.
func NewScoreRecord(sub Submission, clientTS time.Time) ScoreRecord {
	return ScoreRecord{
		SubmissionID:     uuid.NewString(),
		PlayerTag:        sub.PlayerTag,
		SurvivalTime:     sub.SurvivalTime,
		SessionSignature: sub.SessionSignature,
		ClientTimestamp:  clientTS,
		ServerTimestamp:  sub.ReceivedAt.UTC(),
	}
}

// SubmissionResult is what the ingestion pipeline reports back to the caller.
type SubmissionResult struct {
	Accepted          bool
	SubmissionID      string
	Rank              int // 0 when not on the leaderboard
	PersonalBest      bool
	PersonalBestDelta float64 // improvement over the previous best, seconds
	SubmissionCount   int
	RankingPending    bool // score recorded but not yet folded into the board
	Message           string
}
