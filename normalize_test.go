package everytriv

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestIsJSONContent(t *testing.T) {
	tests := map[string]bool{
		"application/json":                true,
		"application/json; charset=utf-8": true,
		"Application/JSON":                true,
		"application/problem+json":        true,
		"text/plain":                      false,
		"text/html; charset=utf-8":        false,
		"":                                false,
	}
	for ct, want := range tests {
		if got := isJSONContent(ct); got != want {
			t.Errorf("isJSONContent(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestNormalizeSuccess(t *testing.T) {
	jsonHeader := http.Header{"Content-Type": []string{contentTypeJSON}}
	textHeader := http.Header{"Content-Type": []string{"text/plain"}}

	tests := []struct {
		name        string
		header      http.Header
		body        string
		wantData    string
		wantSuccess bool
		wantErrKind string
	}{
		{"envelope", jsonHeader, `{"success":true,"data":{"a":1},"timestamp":"t"}`, `{"a":1}`, true, ""},
		{"failed envelope", jsonHeader, `{"success":false,"data":[]}`, `[]`, false, ""},
		{"object without envelope", jsonHeader, `{"success":true,"message":"no data key"}`, `{"success":true,"message":"no data key"}`, true, ""},
		{"bare array", jsonHeader, `[1,2,3]`, `[1,2,3]`, true, ""},
		{"bare number", jsonHeader, `42`, `42`, true, ""},
		{"text", textHeader, `hello`, `"hello"`, true, ""},
		{"json-looking text", textHeader, `{"a":1}`, `"{\"a\":1}"`, true, ""},
		{"empty", jsonHeader, ``, `null`, true, ""},
		{"invalid json", jsonHeader, `{"a":`, ``, false, KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := normalizeSuccess(http.StatusOK, tt.header, []byte(tt.body), nil)
			if tt.wantErrKind != "" {
				apiErr, ok := AsAPIError(err)
				if !ok || apiErr.Kind != tt.wantErrKind {
					t.Fatalf("Expected %s error, got %v", tt.wantErrKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeSuccess() returned error: %v", err)
			}
			if string(resp.Data) != tt.wantData {
				t.Errorf("Expected data %s, got %s", tt.wantData, resp.Data)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("Expected success %v, got %v", tt.wantSuccess, resp.Success)
			}
			if !json.Valid(resp.Data) {
				t.Errorf("Normalized data must be valid JSON, got %s", resp.Data)
			}
		})
	}
}

func TestParseErrorBody(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantDetails any
	}{
		{"empty", ``, "", nil},
		{"message", `{"message":"nope","code":7}`, "nope", json.RawMessage(`{"message":"nope","code":7}`)},
		{"error string", `{"error":"denied"}`, "denied", json.RawMessage(`{"error":"denied"}`)},
		{"error object", `{"error":{"message":"deep"}}`, "deep", json.RawMessage(`{"error":{"message":"deep"}}`)},
		{"no message", `{"code":7}`, "", json.RawMessage(`{"code":7}`)},
		{"text", "  upstream timeout \n", "upstream timeout", "upstream timeout"},
		{"json array is text", `[1]`, "[1]", "[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, details := parseErrorBody([]byte(tt.body))
			if msg != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, msg)
			}
			switch want := tt.wantDetails.(type) {
			case nil:
				if details != nil {
					t.Errorf("Expected no details, got %v", details)
				}
			case json.RawMessage:
				got, ok := details.(json.RawMessage)
				if !ok || string(got) != string(want) {
					t.Errorf("Expected details %s, got %v", want, details)
				}
			default:
				if details != want {
					t.Errorf("Expected details %v, got %v", want, details)
				}
			}
		})
	}
}

func TestNormalizeErrorFallsBackToStatusText(t *testing.T) {
	err := normalizeError(http.StatusTooManyRequests, nil, nil)
	if err.Message != "Too Many Requests" || err.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Unexpected error %+v", err)
	}

	err = normalizeError(799, nil, nil)
	if err.Message != "request failed" {
		t.Errorf("Expected generic message for unknown status, got %q", err.Message)
	}
}
