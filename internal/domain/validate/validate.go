// Package validate implements pure plausibility checks on score submissions.
//
// Validation is deterministic, performs no I/O, and is safe for concurrent
// use without synchronization. Checks run in a fixed order and short-circuit
// on the first failure so callers always get a single specific reason.
package validate

import (
	"fmt"
	"math"
	"time"
)

// Default validation bounds.
const (
	// defaultMinSurvival is the fastest plausible human reaction, seconds.
	defaultMinSurvival = 0.05
	// defaultMaxSurvival is the game's victory threshold, seconds.
	defaultMaxSurvival = 20.0
	// defaultClockSkew bounds accepted client/server clock drift.
	defaultClockSkew = 10 * time.Minute
	// precisionEpsilon is the tolerance when checking 2-decimal rounding.
	precisionEpsilon = 1e-4
	// signatureLength is the required session signature length in hex chars.
	signatureLength = 64
	// maxTagLength caps the player tag.
	maxTagLength = 3
)

// Validator checks submission shape and plausibility.
type Validator struct {
	minSurvival float64
	maxSurvival float64
	clockSkew   time.Duration
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithSurvivalBounds overrides the accepted survival-time range.
func WithSurvivalBounds(minSeconds, maxSeconds float64) Option {
	return func(v *Validator) {
		if minSeconds > 0 && maxSeconds > minSeconds {
			v.minSurvival = minSeconds
			v.maxSurvival = maxSeconds
		}
	}
}

// WithClockSkew overrides the accepted client clock drift.
func WithClockSkew(skew time.Duration) Option {
	return func(v *Validator) {
		if skew > 0 {
			v.clockSkew = skew
		}
	}
}

// New constructs a Validator with default bounds.
func New(opts ...Option) *Validator {
	v := &Validator{
		minSurvival: defaultMinSurvival,
		maxSurvival: defaultMaxSurvival,
		clockSkew:   defaultClockSkew,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check validates a submission and returns the parsed client timestamp.
// serverNow anchors the clock-skew check so results are reproducible in
// tests. The returned error is one of this package's sentinel kinds.
func (v *Validator) Check(playerTag string, survivalTime float64, sessionSignature string, clientTimestamp string, serverNow time.Time) (time.Time, error) {
	if err := checkTag(playerTag); err != nil {
		return time.Time{}, err
	}
	if err := v.checkSurvival(survivalTime); err != nil {
		return time.Time{}, err
	}
	if err := checkSignature(sessionSignature); err != nil {
		return time.Time{}, err
	}
	return v.checkTimestamp(clientTimestamp, serverNow)
}

// checkTag requires 1-3 uppercase alphanumeric characters.
func checkTag(tag string) error {
	if len(tag) < 1 || len(tag) > maxTagLength {
		return fmt.Errorf("%w: tag must be 1-%d characters", ErrPlayerTag, maxTagLength)
	}
	for _, r := range tag {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("%w: tag must be uppercase alphanumeric", ErrPlayerTag)
		}
	}
	return nil
}

// checkSurvival enforces bounds and 2-decimal precision.
func (v *Validator) checkSurvival(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: survival time is not a number", ErrSurvivalBounds)
	}
	if t <= 0 || t < v.minSurvival {
		return fmt.Errorf("%w: survival time %.4f below minimum %.2f", ErrSurvivalBounds, t, v.minSurvival)
	}
	if t > v.maxSurvival {
		return fmt.Errorf("%w: survival time %.4f above maximum %.2f", ErrSurvivalBounds, t, v.maxSurvival)
	}
	rounded := math.Round(t*100) / 100
	if math.Abs(t-rounded) > precisionEpsilon {
		return fmt.Errorf("%w: survival time %v has more than 2 decimal places", ErrSurvivalPrecision, t)
	}
	return nil
}

// checkSignature requires a 64-character lowercase-or-uppercase hex token.
func checkSignature(sig string) error {
	if len(sig) != signatureLength {
		return fmt.Errorf("%w: signature must be %d hex characters", ErrSessionSignature, signatureLength)
	}
	for _, r := range sig {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return fmt.Errorf("%w: signature contains non-hex characters", ErrSessionSignature)
		}
	}
	return nil
}

// checkTimestamp parses the client timestamp and bounds its skew.
func (v *Validator) checkTimestamp(ts string, serverNow time.Time) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrClientTimestamp, err)
	}
	skew := serverNow.Sub(parsed)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.clockSkew {
		return time.Time{}, fmt.Errorf("%w: client clock off by %s (max %s)", ErrClockSkew, skew.Round(time.Second), v.clockSkew)
	}
	return parsed, nil
}
