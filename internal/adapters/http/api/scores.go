// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	service "github.com/okian/topple/internal/app"
	"github.com/okian/topple/internal/domain/model"
	"github.com/okian/topple/internal/domain/validate"
)

// ScoresHandler handles score submission requests.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new score submission handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /scores requests. It maps pipeline outcomes
// onto the wire taxonomy: 201 for accepted scores (ranked or not), 400 for
// validation failures, 429 for rate-limited clients, 409 for duplicates.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   codeBadRequest,
			Message: "request body is not valid JSON",
		})
		return
	}

	sub := model.Submission{
		PlayerTag:        req.PlayerTag,
		SurvivalTime:     req.SurvivalTime,
		SessionSignature: req.SessionSignature,
		ClientTimestamp:  req.ClientTimestamp,
		ClientID:         clientID(r),
	}

	res, err := h.deps.Submit(r.Context(), sub)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, scoreResponse{
		Accepted:          res.Accepted,
		SubmissionID:      res.SubmissionID,
		Rank:              res.Rank,
		PersonalBest:      res.PersonalBest,
		PersonalBestDelta: res.PersonalBestDelta,
		SubmissionCount:   res.SubmissionCount,
		RankingPending:    res.RankingPending,
		Message:           res.Message,
	})
}

func (h *ScoresHandler) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   codeValidationFailed,
			Reason:  validate.Reason(err),
			Message: "submission rejected",
		})
	case errors.Is(err, service.ErrRateLimited):
		retryAfter := time.Second
		var rl *service.RateLimitedError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			retryAfter = rl.RetryAfter
		}
		seconds := int(retryAfter.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:             codeRateLimited,
			Message:           "too many submissions; slow down",
			RetryAfterSeconds: seconds,
		})
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   codeDuplicateSubmission,
			Message: "this submission was already recorded",
		})
	case errors.Is(err, service.ErrStorage):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   codeStorageUnavailable,
			Message: "score could not be persisted; please retry",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   codeInternal,
			Message: "unexpected error",
		})
	}
}
