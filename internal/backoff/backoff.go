// Package backoff provides exponential backoff with jitter.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy parameterizes exponential backoff.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64 // fraction of base added as randomized jitter, [0,1]
}

// Compute returns the backoff duration for the given attempt (1-indexed),
// using the package-level random source.
func (p Policy) Compute(attempt int) time.Duration {
	return p.ComputeWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not need crypto randomness
}

// ComputeWithRand computes backoff using a supplied random value in [0,1),
// for deterministic tests.
func (p Policy) ComputeWithRand(attempt int, randomValue float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2.0
	}
	base := float64(p.Initial) * math.Pow(factor, float64(attempt-1))
	jitterAmount := base * p.Jitter * randomValue
	total := base + jitterAmount
	if p.Max > 0 && total > float64(p.Max) {
		total = float64(p.Max)
	}
	return time.Duration(total)
}

// TailerPolicy returns the backoff policy for a tailer's transient I/O
// error handling: initial = pollInterval, capped at pollInterval*16,
// doubling each attempt.
func TailerPolicy(pollInterval time.Duration) Policy {
	return Policy{
		Initial: pollInterval,
		Max:     pollInterval * 16,
		Factor:  2.0,
		Jitter:  0.2,
	}
}

// WebhookPolicy returns the default webhook retry policy: starting at
// initial, doubling, no jitter, capped at 1024 times initial.
func WebhookPolicy(initial time.Duration) Policy {
	return Policy{
		Initial: initial,
		Max:     initial * 1 << 10,
		Factor:  2.0,
		Jitter:  0,
	}
}
