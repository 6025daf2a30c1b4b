package everytriv

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Transport performs one HTTP round-trip. *http.Client satisfies it.
type Transport interface {
	Do(*http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(*http.Request) (*http.Response, error)

// Do implements Transport.
func (f TransportFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Token store keys used by the auth flow.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// TokenStore persists access and refresh tokens. Implementations must be safe
// for concurrent use; GetString returns ErrTokenNotFound for missing keys.
type TokenStore interface {
	GetString(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RequestDescriptor is one HTTP verb on one path with one JSON-serializable body.
// It is never mutated by the pipeline so retries and replays can rebuild the
// request from it.
type RequestDescriptor struct {
	URL    string
	Method string
	Body   any
	Config RequestConfig
}

// RequestConfig carries per-request knobs. The caller's context is the
// cancellation signal.
type RequestConfig struct {
	// RequestID overrides the deduplication key.
	RequestID string
	// Timeout overrides the client timeout for each attempt.
	Timeout           time.Duration
	SkipRetry         bool
	SkipDeduplication bool
	// BaseURL overrides the client base URL.
	BaseURL string
	Header  http.Header
	Query   map[string]string
}

// RequestOption mutates a RequestConfig.
type RequestOption func(*RequestConfig)

// WithRequestID sets an explicit deduplication key.
func WithRequestID(id string) RequestOption {
	return func(c *RequestConfig) {
		c.RequestID = id
	}
}

// WithRequestTimeout sets the per-attempt timeout.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(c *RequestConfig) {
		c.Timeout = d
	}
}

// WithoutRetry disables retries for the request.
func WithoutRetry() RequestOption {
	return func(c *RequestConfig) {
		c.SkipRetry = true
	}
}

// WithoutDeduplication forces a dedicated round-trip.
func WithoutDeduplication() RequestOption {
	return func(c *RequestConfig) {
		c.SkipDeduplication = true
	}
}

// WithRequestBaseURL overrides the client base URL.
func WithRequestBaseURL(baseURL string) RequestOption {
	return func(c *RequestConfig) {
		c.BaseURL = baseURL
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(c *RequestConfig) {
		if c.Header == nil {
			c.Header = make(http.Header)
		}
		c.Header.Add(key, value)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(c *RequestConfig) {
		if c.Query == nil {
			c.Query = make(map[string]string)
		}
		c.Query[key] = value
	}
}

// APIResponse is the normalized success shape returned to callers.
type APIResponse[T any] struct {
	Data       T           `json:"data"`
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Timestamp  string      `json:"timestamp,omitempty"`
	Header     http.Header `json:"-"`
}

// Response is an APIResponse whose data has not been decoded yet. Responses
// shared by deduplicated callers must be treated as read-only.
type Response = APIResponse[json.RawMessage]

// Transformer rewrites a JSON document. Request transformers see the encoded
// body, response transformers see the normalized data.
type Transformer func(doc []byte) ([]byte, error)

// DeduplicationCondition reports whether a descriptor may share a round-trip.
type DeduplicationCondition func(desc RequestDescriptor) bool

// DefaultDeduplicationCondition deduplicates every request.
func DefaultDeduplicationCondition(RequestDescriptor) bool {
	return true
}

// Option represents a configuration option
type Option func(*Client)
