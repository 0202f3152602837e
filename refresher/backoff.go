package refresher

import (
	"math"
	"math/rand"
	"time"

	"github.com/yllada/vpn-client/common"
)

// maxBackoffShift bounds the exponent so the multiplier stays finite.
// The attempt count itself is not clamped; by the time the exponent
// saturates the delay is already astronomically large.
const maxBackoffShift = 62

// BackoffPolicy computes randomized exponential delays for retrying
// failed refresh attempts:
//
//	delay = Base * 2^failedAttempts * jitterFactor
//
// where jitterFactor is drawn from 1 + R*(2U-1) with U uniform in [0,1)
// and R the Randomness amplitude. The jitter spreads retries of many
// clients failing at the same time so they do not hammer the API in
// lockstep.
//
// The zero value is usable: it applies the package defaults.
type BackoffPolicy struct {
	// Base is the delay for attempt zero with neutral jitter.
	// Zero means common.DefaultBackoffBase.
	Base time.Duration
	// Randomness is the jitter amplitude R. Zero means
	// common.RefreshRandomness; negative disables jitter.
	Randomness float64
	// MaxDelay caps the computed delay. Zero means uncapped, which lets
	// delays grow without bound for very large attempt counts; whether a
	// cap is wanted is a deployment decision, not a default.
	MaxDelay time.Duration
	// Jitter overrides the jitter factor source. Tests inject a
	// deterministic function here; nil draws one random sample per call.
	Jitter func() float64
}

// Delay returns the backoff delay for the given number of failed attempts.
// A negative attempt count returns common.ErrInvalidBackoffInput.
func (p BackoffPolicy) Delay(failedAttempts int) (time.Duration, error) {
	if failedAttempts < 0 {
		return 0, common.ErrInvalidBackoffInput
	}

	base := p.Base
	if base == 0 {
		base = common.DefaultBackoffBase
	}

	shift := failedAttempts
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	delay := float64(base) * math.Pow(2, float64(shift)) * p.jitterFactor()

	// float64(MaxInt64) rounds up to 2^63, which would wrap to the
	// minimum int64 on conversion; saturate strictly below it.
	result := time.Duration(math.MaxInt64)
	if delay < float64(math.MaxInt64) {
		result = time.Duration(delay)
	}
	if p.MaxDelay > 0 && result > p.MaxDelay {
		result = p.MaxDelay
	}
	return result, nil
}

func (p BackoffPolicy) jitterFactor() float64 {
	if p.Jitter != nil {
		return p.Jitter()
	}

	randomness := p.Randomness
	if randomness == 0 {
		randomness = common.RefreshRandomness
	}
	if randomness < 0 {
		return 1
	}
	return 1 + randomness*(2*rand.Float64()-1)
}
