package everytriv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestAPIError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &APIError{
		Kind:       KindNetwork,
		Message:    "network request failed",
		RequestID:  "req-1",
		Attempt:    2,
		StatusCode: 0,
		Cause:      cause,
	}

	msg := err.Error()
	for _, want := range []string{"[req-1]", "network: network request failed", "dial tcp: refused", "(attempt 2)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}
	if strings.Contains(msg, "status") {
		t.Errorf("No status should be rendered without a response, got %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
}

func TestAPIErrorNilHandling(t *testing.T) {
	var err *APIError
	if err.Error() != "<nil>" {
		t.Errorf("Unexpected nil message %q", err.Error())
	}
	if err.Unwrap() != nil || err.Is(ErrSessionExpired) {
		t.Error("Nil error should not unwrap or match")
	}
	if err.DebugInfo() != "Error: <nil>" {
		t.Errorf("Unexpected nil debug info %q", err.DebugInfo())
	}
}

func TestAPIErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    *APIError
		target error
		want   bool
	}{
		{"session expired", &APIError{Kind: KindSessionExpired}, ErrSessionExpired, true},
		{"unauthorized is not expired", &APIError{Kind: KindUnauthorized}, ErrSessionExpired, false},
		{"timeout", &APIError{Kind: KindCancellation, Cause: ErrRequestTimeout}, ErrRequestTimeout, true},
		{"caller cancel", &APIError{Kind: KindCancellation, Cause: context.Canceled}, ErrRequestTimeout, false},
		{"same kind", &APIError{Kind: KindServer, StatusCode: 502}, &APIError{Kind: KindServer}, true},
		{"other kind", &APIError{Kind: KindServer}, &APIError{Kind: KindClient}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIErrorAs(t *testing.T) {
	wrapped := fmt.Errorf("loading leaderboard: %w", &APIError{Kind: KindServer, StatusCode: 503})

	apiErr, ok := AsAPIError(wrapped)
	if !ok || apiErr.StatusCode != 503 {
		t.Fatalf("Expected *APIError through wrapping, got %v", wrapped)
	}
	if _, ok := AsAPIError(errors.New("plain")); ok {
		t.Error("Plain errors are not APIErrors")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &APIError{Kind: KindNetwork}, true},
		{"500", newStatusError(500, "boom", nil, nil), true},
		{"503", newStatusError(503, "down", nil, nil), true},
		{"400", newStatusError(400, "bad", nil, nil), false},
		{"401", newStatusError(401, "auth", nil, nil), false},
		{"404", newStatusError(404, "missing", nil, nil), false},
		{"cancellation", &APIError{Kind: KindCancellation}, false},
		{"session expired", &APIError{Kind: KindSessionExpired}, false},
		{"malformed", &APIError{Kind: KindMalformed}, false},
		{"plain error", errors.New("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStatusError(t *testing.T) {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Scheme: "http", Host: "api.test", Path: "/x"}}

	tests := []struct {
		status     int
		wantKind   string
		wantServer bool
		wantClient bool
	}{
		{400, KindClient, false, true},
		{401, KindUnauthorized, false, true},
		{429, KindClient, false, true},
		{500, KindServer, true, false},
		{599, KindServer, true, false},
	}
	for _, tt := range tests {
		err := newStatusError(tt.status, "m", nil, req)
		if err.Kind != tt.wantKind || err.IsServerError != tt.wantServer || err.IsClientError != tt.wantClient {
			t.Errorf("status %d: unexpected classification %+v", tt.status, err)
		}
		if err.Method != http.MethodGet || err.URL != "http://api.test/x" {
			t.Errorf("status %d: expected request context, got %s %s", tt.status, err.Method, err.URL)
		}
		if err.Timestamp.IsZero() {
			t.Errorf("status %d: expected timestamp", tt.status)
		}
	}
}

func TestIsCancellation(t *testing.T) {
	if !IsCancellation(&APIError{Kind: KindCancellation}) {
		t.Error("Expected cancellation")
	}
	if IsCancellation(&APIError{Kind: KindNetwork}) || IsCancellation(context.Canceled) {
		t.Error("Only cancellation APIErrors are cancellations")
	}
}

func TestDebugInfo(t *testing.T) {
	err := newStatusError(502, "bad gateway", "upstream", &http.Request{Method: http.MethodPost, URL: &url.URL{Path: "/answers"}})
	err.RequestID = "req-9"
	err.Attempt = 3

	info := err.DebugInfo()
	for _, want := range []string{"Error Kind: server", "Request ID: req-9", "Method: POST", "URL: /answers", "Status Code: 502", "Attempt: 3", "Details: upstream"} {
		if !strings.Contains(info, want) {
			t.Errorf("Expected %q in debug info:\n%s", want, info)
		}
	}
}
