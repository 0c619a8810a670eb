// Package backoff provides jittered retry delays for substrate operations.
package backoff

import (
	rand "math/rand/v2"
	"time"
)

// Jitter computes the next retry delay from the previous one using a jittered
// exponential scheme with a cap.
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
//
// Behavior:
//   - If prev <= 0, start from base
//   - mult < 1.0 falls back to 1.0 (no growth)
//   - 0 < capDur <= base returns capDur; capDur <= 0 means no cap
//
// The rng parameter allows deterministic tests; pass nil to use the
// package-level PRNG.
func Jitter(prev, base time.Duration, mult float64, capDur time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if mult < 1.0 {
		mult = 1.0
	}
	if capDur > 0 && capDur < base {
		return capDur
	}

	if prev <= 0 {
		if capDur > 0 && base > capDur {
			return capDur
		}

		return base
	}

	maxDelta := time.Duration(float64(prev)*mult) - base
	if maxDelta <= 0 {
		maxDelta = base
	}

	var jitter int64
	if rng != nil {
		jitter = rng.Int64N(int64(maxDelta))
	} else {
		jitter = rand.Int64N(int64(maxDelta)) //nolint:gosec // non-crypto backoff jitter
	}

	next := base + time.Duration(jitter)
	if capDur > 0 && next > capDur {
		return capDur
	}

	return next
}
