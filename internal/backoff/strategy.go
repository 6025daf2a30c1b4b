package backoff

import (
	"math"
	"time"
)

// Strategy computes the un-jittered delay before retrying the given attempt.
// Attempts are 1-based: attempt 1 is the call that just failed for the first time.
type Strategy interface {
	Calculate(attempt int, base, maxDelay time.Duration, multiplier float64) time.Duration
}

// LinearStrategy waits base * attempt.
type LinearStrategy struct{}

// Calculate implements Strategy.
func (s LinearStrategy) Calculate(attempt int, base, maxDelay time.Duration, _ float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Prevent overflow by limiting attempt
	if attempt > 1000 {
		attempt = 1000
	}

	return capDelay(base*time.Duration(attempt), maxDelay)
}

// ExponentialStrategy waits base * multiplier^(attempt-1).
type ExponentialStrategy struct{}

// Calculate implements Strategy.
func (s ExponentialStrategy) Calculate(attempt int, base, maxDelay time.Duration, multiplier float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if multiplier <= 0 {
		multiplier = 2.0
	}

	// Prevent overflow by limiting attempt
	if attempt > 31 {
		attempt = 31
	}

	f := float64(base) * pow(multiplier, attempt-1)
	if maxDelay > 0 && f > float64(maxDelay) {
		return maxDelay
	}
	if f > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return capDelay(time.Duration(f), maxDelay)
}

// capDelay clamps d to maxDelay; a non-positive maxDelay disables the cap.
func capDelay(d, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && (d < 0 || d > maxDelay) {
		return maxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
