// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// defaultTopCount applies when GET /scores/top has no count parameter.
const defaultTopCount = 10

// TopHandler handles leaderboard read requests.
type TopHandler struct {
	deps     Dependencies
	maxCount int
}

// NewTopHandler creates a new leaderboard handler. maxCount caps the count
// query parameter.
func NewTopHandler(deps Dependencies, maxCount int) *TopHandler {
	if maxCount < 1 {
		maxCount = defaultTopCount
	}
	return &TopHandler{deps: deps, maxCount: maxCount}
}

// HandleGetTop handles GET /scores/top?count=N requests. Responses carry an
// ETag derived from the board content; a matching If-None-Match short-circuits
// to 304 without touching the snapshot entries.
func (h *TopHandler) HandleGetTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	count := defaultTopCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   codeBadRequest,
				Message: "count must be a positive integer",
			})
			return
		}
		if n > h.maxCount {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   codeBadRequest,
				Message: fmt.Sprintf("count must not exceed %d", h.maxCount),
			})
			return
		}
		count = n
	}

	total, lastUpdated, etag := h.deps.BoardMeta(r.Context())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	slots, err := h.deps.Top(r.Context(), count)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   codeInternal,
			Message: "failed to read leaderboard",
		})
		return
	}

	entries := make([]topEntry, 0, len(slots))
	for _, s := range slots {
		entries = append(entries, topEntry{
			Rank:            s.Rank,
			PlayerTag:       s.PlayerTag,
			SurvivalTime:    s.SurvivalTime,
			SubmittedAt:     s.SubmittedAt.UTC().Format(time.RFC3339),
			SubmissionCount: s.SubmissionCount,
		})
	}

	resp := topResponse{
		Entries:      entries,
		TotalEntries: total,
	}
	if !lastUpdated.IsZero() {
		resp.LastUpdated = lastUpdated.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
