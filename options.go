package everytriv

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WithBaseURL sets the base URL relative paths are joined onto
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryPolicy replaces the retry policy. Zero fields keep their defaults.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		def := DefaultRetryPolicy()
		if p.MaxAttempts == 0 {
			p.MaxAttempts = def.MaxAttempts
		}
		if p.BaseDelay == 0 {
			p.BaseDelay = def.BaseDelay
		}
		if p.MaxDelay == 0 {
			p.MaxDelay = def.MaxDelay
		}
		if p.Multiplier == 0 {
			p.Multiplier = def.Multiplier
		}
		c.retryPolicy = p
	}
}

// WithMaxAttempts sets the total number of transport calls per request
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.retryPolicy.MaxAttempts = n
	}
}

// WithBackoff sets the backoff strategy and base delay
func WithBackoff(strategy BackoffStrategy, base time.Duration) Option {
	return func(c *Client) {
		c.retryPolicy.Strategy = strategy
		c.retryPolicy.BaseDelay = base
	}
}

// WithMaxBackoff caps the retry delay
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retryPolicy.MaxDelay = d
	}
}

// WithTransport sets the transport
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient uses a custom *http.Client as the transport. Its Timeout is
// left alone; per-attempt timeouts come from WithTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.transport = client
	}
}

// WithDefaultHeader adds a header sent with every request
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.defaultHeader.Set(key, value)
	}
}

// WithTokenStore enables bearer auth and refresh-and-replay on 401
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokenStore = store
	}
}

// WithRefresher replaces the default HTTP refresher
func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}

// WithRefreshPath sets the path (or absolute URL) of the refresh endpoint
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithProactiveRefresh refreshes JWT access tokens that expire within skew
// before sending them
func WithProactiveRefresh(skew time.Duration) Option {
	return func(c *Client) {
		c.proactiveSkew = skew
	}
}

// WithRequestInterceptor registers a request interceptor
func WithRequestInterceptor(i Interceptor[*http.Request], opts ...UseOption) Option {
	return func(c *Client) {
		c.requestChain.Use(i, opts...)
	}
}

// WithResponseInterceptor registers a response interceptor
func WithResponseInterceptor(i Interceptor[*Response], opts ...UseOption) Option {
	return func(c *Client) {
		c.responseChain.Use(i, opts...)
	}
}

// WithErrorInterceptor registers an error interceptor
func WithErrorInterceptor(i Interceptor[*APIError], opts ...UseOption) Option {
	return func(c *Client) {
		c.errorChain.Use(i, opts...)
	}
}

// WithDeduplicationCondition restricts which requests share round-trips
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsRegistry enables metrics on a dedicated registerer
func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollectorWithRegistry(registry)
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration. Without a
// logger set, output goes to stderr.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		if c.logger == nil {
			c.logger = NewConsoleLogger()
		}
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets the diagnostics sink
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithConsoleLogger enables debug logging to stderr
func WithConsoleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewConsoleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateRetryConfig()...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateAuthConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &APIError{
			Kind:    KindValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

// validateRetryConfig validates retry-related configuration
func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.retryPolicy.MaxAttempts < 1 {
		errors = append(errors, "retry MaxAttempts must be at least 1")
	}

	if c.retryPolicy.BaseDelay < 0 {
		errors = append(errors, "retry BaseDelay must be non-negative")
	}

	if c.retryPolicy.MaxDelay > 0 && c.retryPolicy.MaxDelay < c.retryPolicy.BaseDelay {
		errors = append(errors, "retry MaxDelay must be greater than or equal to BaseDelay")
	}

	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}

	return errors
}

// validateTransportConfig validates transport and URL configuration
func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.transport == nil {
		errors = append(errors, "transport cannot be nil")
	}

	if c.baseURL != "" && !strings.HasPrefix(c.baseURL, "http://") && !strings.HasPrefix(c.baseURL, "https://") {
		errors = append(errors, "baseURL must start with http:// or https://")
	}

	if c.dedupCondition == nil {
		errors = append(errors, "deduplication condition must be set")
	}

	return errors
}

// validateAuthConfig validates token refresh configuration
func (c *Client) validateAuthConfig() []string {
	var errors []string

	if c.tokenStore == nil && c.proactiveSkew > 0 {
		errors = append(errors, "proactive refresh requires a token store")
	}

	if c.tokenStore != nil {
		if r, ok := c.refresher.(*HTTPRefresher); ok && !strings.HasPrefix(r.URL, "http") {
			errors = append(errors, "refresh endpoint must resolve to an absolute URL; set a base URL or an absolute refresh path")
		}
	}

	return errors
}

// validateDebugConfig validates debug configuration
func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled && c.logger == nil {
		errors = append(errors, "logger must be set when debug is enabled")
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.retryPolicy.MaxAttempts > 100 {
		errors = append(errors, "retry MaxAttempts > 100 may cause excessive resource usage")
	}

	if c.retryPolicy.BaseDelay > 10*time.Minute {
		errors = append(errors, "retry BaseDelay > 10m may cause very long delays")
	}

	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	return errors
}
