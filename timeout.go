package everytriv

import (
	"context"
	"errors"
	"time"
)

// composeSignal returns the effective cancellation signal for one attempt: it
// is done when the caller cancels parent or when timeout elapses, whichever
// comes first. context.Cause on the result is ErrRequestTimeout only when the
// timer fired.
func composeSignal(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeoutCause(parent, timeout, ErrRequestTimeout)
}

// cancellationError builds the terminal error for an aborted attempt.
func cancellationError(ctx context.Context, cause error) *APIError {
	msg := "request cancelled"
	reason := context.Cause(ctx)
	if reason == nil {
		reason = cause
	}
	if errors.Is(reason, ErrRequestTimeout) {
		msg = "request timed out"
	}
	return &APIError{
		Kind:      KindCancellation,
		Message:   msg,
		Timestamp: time.Now(),
		Cause:     reason,
	}
}

// isCancelled reports whether a transport failure was caused by the signal.
func isCancelled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
