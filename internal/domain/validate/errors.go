package validate

import "errors"

// Sentinel kinds for validation failures. Each maps to a machine-readable
// reason code via Reason.
var (
	ErrPlayerTag         = errors.New("invalid player tag")
	ErrSurvivalBounds    = errors.New("survival time out of range")
	ErrSurvivalPrecision = errors.New("survival time precision exceeded")
	ErrSessionSignature  = errors.New("invalid session signature")
	ErrClientTimestamp   = errors.New("invalid client timestamp")
	ErrClockSkew         = errors.New("client clock skew too large")
)

// Reason maps a validation error to its wire-level reason code.
// Unknown errors map to "invalid_submission".
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrPlayerTag):
		return "invalid_player_tag"
	case errors.Is(err, ErrSurvivalBounds):
		return "survival_time_out_of_range"
	case errors.Is(err, ErrSurvivalPrecision):
		return "survival_time_precision"
	case errors.Is(err, ErrSessionSignature):
		return "invalid_session_signature"
	case errors.Is(err, ErrClockSkew):
		return "clock_skew_too_large"
	case errors.Is(err, ErrClientTimestamp):
		return "invalid_client_timestamp"
	default:
		return "invalid_submission"
	}
}
