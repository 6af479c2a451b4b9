// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/topple/internal/adapters/repository/board"
)

// RankHandler handles per-player rank lookups.
type RankHandler struct {
	deps Dependencies
}

// NewRankHandler creates a new rank lookup handler.
func NewRankHandler(deps Dependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /scores/player/{tag}/rank requests. A player who
// is not on the leaderboard gets a 200 with a null rank; absence from the
// board is an ordinary answer, not an error.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/scores/player/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "rank" {
		http.NotFound(w, r)
		return
	}
	tag := strings.ToUpper(parts[0])

	slot, err := h.deps.RankOf(r.Context(), tag)
	if err != nil {
		if errors.Is(err, board.ErrNotRanked) {
			writeJSON(w, http.StatusOK, rankResponse{PlayerTag: tag, Rank: nil})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   codeInternal,
			Message: "failed to read leaderboard",
		})
		return
	}

	writeJSON(w, http.StatusOK, rankResponse{
		PlayerTag:       slot.PlayerTag,
		Rank:            &slot.Rank,
		SurvivalTime:    &slot.SurvivalTime,
		SubmittedAt:     slot.SubmittedAt.UTC().Format(time.RFC3339),
		SubmissionCount: slot.SubmissionCount,
	})
}
