// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/okian/topple/internal/adapters/repository/board"
	"github.com/okian/topple/internal/domain/model"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Submit runs the ingestion pipeline for one score submission.
	Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error)

	// Read operations expose leaderboard data.
	Top(ctx context.Context, n int) ([]board.Slot, error)
	RankOf(ctx context.Context, playerTag string) (board.Slot, error)
	BoardMeta(ctx context.Context) (int, time.Time, string)
}

// StatsProvider exposes service counters for the /stats endpoint.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	scoresHandler *ScoresHandler
	topHandler    *TopHandler
	rankHandler   *RankHandler
}

// NewServer creates a new API server with all handlers. maxTopLimit caps
// GET /scores/top?count.
func NewServer(deps Dependencies, stats StatsProvider, maxTopLimit int) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(stats),
		scoresHandler: NewScoresHandler(deps),
		topHandler:    NewTopHandler(deps, maxTopLimit),
		rankHandler:   NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/scores/top", MetricsMiddleware(s.topHandler.HandleGetTop, "scores_top"))
	mux.HandleFunc("/scores/player/", MetricsMiddleware(s.rankHandler.HandleGetRank, "scores_rank"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
}

// scoreRequest mirrors the POST /scores contract.
type scoreRequest struct {
	PlayerTag        string  `json:"playerTag"`
	SurvivalTime     float64 `json:"survivalTime"`
	SessionSignature string  `json:"sessionSignature"`
	ClientTimestamp  string  `json:"clientTimestamp"`
}

// scoreResponse is the success shape for POST /scores.
type scoreResponse struct {
	Accepted          bool    `json:"accepted"`
	SubmissionID      string  `json:"submissionId"`
	Rank              int     `json:"rank"`
	PersonalBest      bool    `json:"personalBest"`
	PersonalBestDelta float64 `json:"personalBestDelta,omitempty"`
	SubmissionCount   int     `json:"submissionCount"`
	RankingPending    bool    `json:"rankingPending,omitempty"`
	Message           string  `json:"message"`
}

// topEntry is one row of GET /scores/top.
type topEntry struct {
	Rank            int     `json:"rank"`
	PlayerTag       string  `json:"playerTag"`
	SurvivalTime    float64 `json:"survivalTime"`
	SubmittedAt     string  `json:"submittedAt"`
	SubmissionCount int     `json:"submissionCount"`
}

// topResponse is the GET /scores/top shape.
type topResponse struct {
	Entries      []topEntry `json:"entries"`
	LastUpdated  string     `json:"lastUpdated"`
	TotalEntries int        `json:"totalEntries"`
}

// rankResponse is the GET /scores/player/{tag}/rank shape. Rank is null
// when the player is not on the leaderboard; that is a valid state, not an
// error.
type rankResponse struct {
	PlayerTag       string   `json:"playerTag"`
	Rank            *int     `json:"rank"`
	SurvivalTime    *float64 `json:"survivalTime,omitempty"`
	SubmittedAt     string   `json:"submittedAt,omitempty"`
	SubmissionCount int      `json:"submissionCount,omitempty"`
}

// errorResponse is the common failure shape.
type errorResponse struct {
	Error             string `json:"error"`
	Reason            string `json:"reason,omitempty"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientID extracts the caller's network identity for rate limiting:
// first X-Forwarded-For hop when present, else the remote address host.
func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
