package everytriv

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	internalbackoff "github.com/IsraelRub/EveryTriv-sub000/internal/backoff"
)

// BackoffStrategy selects how the retry delay grows with the attempt number.
type BackoffStrategy int

const (
	// ExponentialBackoff waits base * 2^(attempt-1).
	ExponentialBackoff BackoffStrategy = iota
	// LinearBackoff waits base * attempt.
	LinearBackoff
)

// String returns the config name of the strategy.
func (s BackoffStrategy) String() string {
	switch s {
	case LinearBackoff:
		return "linear"
	default:
		return "exponential"
	}
}

// ParseBackoffStrategy maps "linear" / "exponential" to a strategy.
func ParseBackoffStrategy(name string) (BackoffStrategy, bool) {
	switch name {
	case "linear":
		return LinearBackoff, true
	case "exponential", "":
		return ExponentialBackoff, true
	default:
		return ExponentialBackoff, false
	}
}

// RetryPolicy bounds the retry loop. MaxAttempts counts every transport call,
// the first one included.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Strategy    BackoffStrategy
	Multiplier  float64
}

// DefaultRetryPolicy returns 3 attempts with exponential backoff from 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Strategy:    ExponentialBackoff,
		Multiplier:  2.0,
	}
}

func (p RetryPolicy) calculator() *internalbackoff.Calculator {
	if p.Strategy == LinearBackoff {
		return internalbackoff.Linear(p.BaseDelay, p.MaxDelay)
	}
	return internalbackoff.Exponential(p.BaseDelay, p.MaxDelay, p.Multiplier)
}

// callState is the per logical Execute state shared by retries and replays.
type callState struct {
	attempt   int
	refreshed bool
	requestID string
}

// executeWithRetry re-runs the whole pipeline while failures are retryable
// and attempts remain.
func (c *Client) executeWithRetry(ctx context.Context, desc RequestDescriptor, st *callState) (*Response, error) {
	if desc.Config.SkipRetry || c.retryPolicy.MaxAttempts <= 1 {
		st.attempt = 1
		return c.runOnce(ctx, desc, st)
	}

	endpoint := endpointOf(desc)
	return retry.DoWithData[*Response](
		func() (*Response, error) {
			st.attempt++
			if st.attempt > 1 {
				c.metrics.RecordRetry(desc.Method, endpoint, st.attempt)
			}
			return c.runOnce(ctx, desc, st)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retryPolicy.MaxAttempts)),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return c.backoff.Delay(st.attempt)
		}),
		retry.OnRetry(func(_ uint, err error) {
			c.debugLog(c.debug.LogRetries, "Scheduling retry",
				"requestID", st.requestID, "attempt", st.attempt+1,
				"maxAttempts", c.retryPolicy.MaxAttempts, "endpoint", endpoint, "error", err.Error())
		}),
	)
}
