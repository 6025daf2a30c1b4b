package everytriv

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kinds
const (
	KindNetwork        = "network"
	KindServer         = "server"
	KindClient         = "client"
	KindUnauthorized   = "unauthorized"
	KindSessionExpired = "session_expired"
	KindCancellation   = "cancellation"
	KindMalformed      = "malformed_response"
	KindInvalidRequest = "invalid_request"
	KindInterceptor    = "interceptor"
	KindValidation     = "validation"
)

// Sentinel errors for common failure scenarios
var (
	// ErrSessionExpired is matched by errors.Is when refresh or replay failed
	// and stored tokens were cleared.
	ErrSessionExpired = errors.New("everytriv: session expired")

	// ErrRequestTimeout is the cancellation cause when the per-attempt timer fires.
	ErrRequestTimeout = errors.New("everytriv: request timeout")

	// ErrTokenNotFound is returned by a TokenStore for missing keys.
	ErrTokenNotFound = errors.New("everytriv: token not found")

	// ErrNoRefreshToken is the cause of a session expiry with nothing to refresh.
	ErrNoRefreshToken = errors.New("everytriv: no refresh token")

	// ErrTokenStore wraps a TokenStore fault during refresh. Stored tokens are
	// left in place and the original 401 is returned.
	ErrTokenStore = errors.New("everytriv: token store failure")
)

// APIError is the uniform failure shape. StatusCode 0 means no HTTP response
// was received.
type APIError struct {
	Kind          string
	Message       string
	StatusCode    int
	Details       any
	IsServerError bool
	IsClientError bool
	URL           string
	Method        string
	RequestID     string
	Attempt       int
	Timestamp     time.Time
	Cause         error
}

// Error implements error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 1 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches sentinels by kind and other *APIError values by Kind.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrSessionExpired:
		return e.Kind == KindSessionExpired
	case ErrRequestTimeout:
		return e.Kind == KindCancellation && errors.Is(e.Cause, ErrRequestTimeout)
	}
	if targetErr, ok := target.(*APIError); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *APIError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d\n", e.Attempt)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Details != nil {
		info += fmt.Sprintf("Details: %v\n", e.Details)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsRetryable reports whether err is a transient failure: no HTTP response at
// all, or a 5xx. Cancellations, 4xx and session expiry are terminal.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == KindNetwork || apiErr.IsServerError
}

// IsCancellation reports whether err is a caller abort or a fired timeout.
func IsCancellation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindCancellation
}

// AsAPIError extracts the *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// newStatusError classifies a non-2xx status.
func newStatusError(statusCode int, message string, details any, req *http.Request) *APIError {
	kind := KindClient
	switch {
	case statusCode == http.StatusUnauthorized:
		kind = KindUnauthorized
	case statusCode >= 500:
		kind = KindServer
	}

	apiErr := &APIError{
		Kind:          kind,
		Message:       message,
		StatusCode:    statusCode,
		Details:       details,
		IsServerError: statusCode >= 500 && statusCode < 600,
		IsClientError: statusCode >= 400 && statusCode < 500,
		Timestamp:     time.Now(),
	}
	stampRequest(apiErr, req)
	return apiErr
}

func stampRequest(apiErr *APIError, req *http.Request) {
	if req == nil {
		return
	}
	apiErr.Method = req.Method
	if req.URL != nil {
		apiErr.URL = req.URL.String()
	}
}
