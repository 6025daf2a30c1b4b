package everytriv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	internalbackoff "github.com/IsraelRub/EveryTriv-sub000/internal/backoff"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is the single execution path for every backend call. It layers
// deduplication, retries, per-attempt timeouts, interceptor chains, token
// refresh-and-replay and response normalization around a Transport. It is
// safe for concurrent use; construct one per process and share it.
type Client struct {
	transport      Transport
	baseURL        string
	timeout        time.Duration
	defaultHeader  http.Header
	retryPolicy    RetryPolicy
	backoff        *internalbackoff.Calculator
	dedup          *DeduplicationRegistry
	dedupCondition DeduplicationCondition

	requestChain  *Chain[*http.Request]
	responseChain *Chain[*Response]
	errorChain    *Chain[*APIError]

	requestTransformers  *transformerSet
	responseTransformers *transformerSet

	tokenStore    TokenStore
	refresher     Refresher
	refreshPath   string
	proactiveSkew time.Duration
	auth          *authCoordinator
	authID        string

	metrics         *MetricsCollector
	debug           *DebugConfig
	logger          Logger
	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		transport:            &http.Client{},
		timeout:              30 * time.Second,
		defaultHeader:        make(http.Header),
		retryPolicy:          DefaultRetryPolicy(),
		dedup:                NewDeduplicationRegistry(),
		dedupCondition:       DefaultDeduplicationCondition,
		requestTransformers:  newTransformerSet(),
		responseTransformers: newTransformerSet(),
		refreshPath:          DefaultRefreshPath,
		debug:                DefaultDebugConfig(),
	}
	client.defaultHeader.Set("User-Agent", UserAgent())
	loggerFn := func() Logger { return client.logger }
	client.requestChain = newChain[*http.Request]("request", false, loggerFn)
	client.responseChain = newChain[*Response]("response", false, loggerFn)
	client.errorChain = newChain[*APIError]("error", true, loggerFn)

	for _, option := range options {
		option(client)
	}

	if client.debug == nil {
		client.debug = DefaultDebugConfig()
	}
	client.backoff = client.retryPolicy.calculator()
	client.setupAuth()

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

func (c *Client) setupAuth() {
	if c.tokenStore == nil {
		return
	}
	if c.refresher == nil {
		c.refresher = &HTTPRefresher{
			URL:       c.refreshURL(),
			Transport: c.transport,
		}
	}
	c.auth = &authCoordinator{
		store:     c.tokenStore,
		refresher: c.refresher,
		client:    c,
	}
	c.authID = c.requestChain.Use(&AuthHeaderInjector{
		Store:         c.tokenStore,
		ProactiveSkew: c.proactiveSkew,
		coordinator:   c.auth,
	}, WithPriority(AuthInterceptorPriority))
}

// refreshURL resolves the refresh path against the base URL unless it is
// already absolute.
func (c *Client) refreshURL() string {
	if isAbsoluteURL(c.refreshPath) {
		return c.refreshPath
	}
	return joinURL(c.baseURL, c.refreshPath)
}

func isAbsoluteURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// RequestInterceptors returns the chain applied to every outgoing request.
func (c *Client) RequestInterceptors() *Chain[*http.Request] {
	return c.requestChain
}

// ResponseInterceptors returns the chain applied to every normalized response.
func (c *Client) ResponseInterceptors() *Chain[*Response] {
	return c.responseChain
}

// ErrorInterceptors returns the chain every failure passes through. Error
// interceptors may observe or replace the error but never suppress it.
func (c *Client) ErrorInterceptors() *Chain[*APIError] {
	return c.errorChain
}

// Get performs a GET.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Execute(ctx, newDescriptor(http.MethodGet, url, nil, opts))
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return c.Execute(ctx, newDescriptor(http.MethodPost, url, body, opts))
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return c.Execute(ctx, newDescriptor(http.MethodPut, url, body, opts))
}

// Patch performs a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	return c.Execute(ctx, newDescriptor(http.MethodPatch, url, body, opts))
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Execute(ctx, newDescriptor(http.MethodDelete, url, nil, opts))
}

func newDescriptor(method, url string, body any, opts []RequestOption) RequestDescriptor {
	desc := RequestDescriptor{URL: url, Method: method, Body: body}
	for _, opt := range opts {
		opt(&desc.Config)
	}
	return desc
}

// Execute runs desc through the full pipeline. ctx is the caller's
// cancellation signal; each attempt additionally gets its own timeout.
func (c *Client) Execute(ctx context.Context, desc RequestDescriptor) (*Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}
	if desc.Method == "" {
		desc.Method = http.MethodGet
	}

	start := time.Now()
	endpoint := endpointOf(desc)
	st := &callState{requestID: c.newRequestID()}

	c.debugLog(c.debug.LogRequests, "Starting request", "requestID", st.requestID, "method", desc.Method, "url", desc.URL)
	c.metrics.RecordRequestStart(desc.Method, endpoint)
	defer c.metrics.RecordRequestEnd(desc.Method, endpoint)

	run := func() (*Response, error) {
		resp, err := c.executeWithRetry(ctx, desc, st)
		if err != nil {
			return nil, c.finalizeError(ctx, desc, st, err)
		}
		return resp, nil
	}

	var resp *Response
	var err error
	if !desc.Config.SkipDeduplication && c.dedupCondition(desc) {
		key := c.dedupKey(desc)
		var shared bool
		resp, err, shared = c.dedup.Do(ctx, key, run)
		if shared {
			c.metrics.RecordDeduplicationHit(desc.Method, endpoint)
			c.debugLog(c.debug.LogDedup, "Deduplication hit", "requestID", st.requestID, "dedupKey", key)
		}
	} else {
		resp, err = run()
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	} else if apiErr, ok := AsAPIError(err); ok {
		statusCode = apiErr.StatusCode
	}
	c.metrics.RecordRequest(desc.Method, endpoint, statusCode, time.Since(start))

	return resp, err
}

// dedupKey is the explicit request id or METHOD:URL.
func (c *Client) dedupKey(desc RequestDescriptor) string {
	if desc.Config.RequestID != "" {
		return desc.Config.RequestID
	}
	u, err := c.resolveURL(desc)
	if err != nil {
		return desc.Method + ":" + desc.URL
	}
	return desc.Method + ":" + u
}

// finalizeError turns loop-level failures (context ends between attempts)
// into APIErrors. Errors from runOnce already went through the error chain.
func (c *Client) finalizeError(ctx context.Context, desc RequestDescriptor, st *callState, err error) error {
	if _, ok := AsAPIError(err); ok {
		return err
	}

	var apiErr *APIError
	if isCancelled(ctx, err) {
		apiErr = cancellationError(ctx, err)
	} else {
		apiErr = &APIError{Kind: KindNetwork, Message: "request failed", Timestamp: time.Now(), Cause: err}
	}
	apiErr.Method = desc.Method
	apiErr.URL = desc.URL
	apiErr.RequestID = st.requestID
	apiErr.Attempt = st.attempt
	return c.handleError(ctx, apiErr)
}

// runOnce is one attempt: the round-trip, the 401 branch, and the error chain.
func (c *Client) runOnce(ctx context.Context, desc RequestDescriptor, st *callState) (*Response, error) {
	resp, err := c.roundTrip(ctx, desc)
	if err != nil && c.auth != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.Kind == KindUnauthorized {
			c.debugLog(c.debug.LogAuth, "Unauthorized, refreshing token", "requestID", st.requestID, "refreshed", st.refreshed)
			resp, err = c.auth.handleUnauthorized(ctx, st, apiErr, func(ctx context.Context) (*Response, error) {
				return c.roundTrip(ctx, desc)
			})
		}
	}
	if err != nil {
		apiErr, ok := AsAPIError(err)
		if !ok {
			apiErr = &APIError{Kind: KindNetwork, Message: err.Error(), Timestamp: time.Now(), Cause: err}
		}
		if apiErr.RequestID == "" {
			apiErr.RequestID = st.requestID
		}
		apiErr.Attempt = st.attempt
		return nil, c.handleError(ctx, apiErr)
	}
	return resp, nil
}

// handleError records the failure and folds it through the error chain. A
// chain that yields nil cannot swallow the error.
func (c *Client) handleError(ctx context.Context, apiErr *APIError) error {
	c.metrics.RecordError(apiErr.Kind, apiErr.Method, endpointOfURL(apiErr.URL))
	if c.logger != nil && c.debug.Enabled {
		c.logger.Warn("Request failed", "requestID", apiErr.RequestID, "kind", apiErr.Kind,
			"statusCode", apiErr.StatusCode, "attempt", apiErr.Attempt, "url", apiErr.URL)
	}

	out, _ := c.errorChain.Execute(context.WithoutCancel(ctx), apiErr)
	if out == nil {
		return apiErr
	}
	return out
}

// roundTrip re-derives the request from desc and runs it through the request
// chain, the transport, normalization, transformers and the response chain.
func (c *Client) roundTrip(ctx context.Context, desc RequestDescriptor) (*Response, error) {
	timeout := desc.Config.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	attemptCtx, cancel := composeSignal(ctx, timeout)
	defer cancel()

	req, err := c.buildRequest(attemptCtx, desc)
	if err != nil {
		return nil, &APIError{Kind: KindInvalidRequest, Message: err.Error(), Method: desc.Method, URL: desc.URL, Timestamp: time.Now(), Cause: err}
	}

	req, err = c.requestChain.Execute(attemptCtx, req)
	if err != nil {
		return nil, interceptorError("request", err, req)
	}
	if req == nil {
		return nil, interceptorError("request", fmt.Errorf("interceptor returned no request"), nil)
	}

	httpResp, err := c.transport.Do(req)
	if err != nil {
		return nil, transportError(attemptCtx, err, req)
	}

	body, err := readBody(httpResp)
	if err != nil {
		return nil, transportError(attemptCtx, err, req)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, normalizeError(httpResp.StatusCode, body, req)
	}

	resp, err := normalizeSuccess(httpResp.StatusCode, httpResp.Header, body, req)
	if err != nil {
		return nil, err
	}

	data, err := c.responseTransformers.apply(resp.Data)
	if err != nil {
		return nil, malformedError(err, req)
	}
	resp.Data = data

	resp, err = c.responseChain.Execute(attemptCtx, resp)
	if err != nil {
		return nil, interceptorError("response", err, req)
	}
	if resp == nil {
		return nil, interceptorError("response", fmt.Errorf("interceptor returned no response"), req)
	}
	return resp, nil
}

func (c *Client) buildRequest(ctx context.Context, desc RequestDescriptor) (*http.Request, error) {
	target, err := c.resolveURL(desc)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if desc.Body != nil {
		payload, err := encodeBody(desc.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		payload, err = c.requestTransformers.apply(payload)
		if err != nil {
			return nil, fmt.Errorf("request transformer failed: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, target, body)
	if err != nil {
		return nil, err
	}

	for key, values := range c.defaultHeader {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range desc.Config.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return req, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return codec.Marshal(b)
	}
}

// resolveURL joins the descriptor URL onto the base URL and adds query params.
func (c *Client) resolveURL(desc RequestDescriptor) (string, error) {
	base := c.baseURL
	if desc.Config.BaseURL != "" {
		base = desc.Config.BaseURL
	}

	raw := desc.URL
	if !isAbsoluteURL(raw) {
		raw = joinURL(base, raw)
	}

	if len(desc.Config.Query) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	q := u.Query()
	for k, v := range desc.Config.Query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func transportError(ctx context.Context, err error, req *http.Request) *APIError {
	var apiErr *APIError
	if isCancelled(ctx, err) {
		apiErr = cancellationError(ctx, err)
	} else {
		apiErr = &APIError{
			Kind:      KindNetwork,
			Message:   "network request failed",
			Timestamp: time.Now(),
			Cause:     err,
		}
	}
	stampRequest(apiErr, req)
	return apiErr
}

func interceptorError(chain string, err error, req *http.Request) error {
	if _, ok := AsAPIError(err); ok {
		return err
	}
	apiErr := &APIError{
		Kind:      KindInterceptor,
		Message:   chain + " interceptor failed",
		Timestamp: time.Now(),
		Cause:     err,
	}
	stampRequest(apiErr, req)
	return apiErr
}

func (c *Client) newRequestID() string {
	if c.debug != nil && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

func (c *Client) debugLog(enabled bool, msg string, keyvals ...any) {
	if c.debug != nil && c.debug.Enabled && enabled && c.logger != nil {
		c.logger.Debug(msg, keyvals...)
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func endpointOf(desc RequestDescriptor) string {
	return endpointOfURL(desc.URL)
}

// endpointOfURL strips scheme and query for metric labels.
func endpointOfURL(raw string) string {
	if raw == "" {
		return "unknown"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		if u.Host != "" && !strings.HasPrefix(u.Path, "/") {
			builder.WriteByte('/')
		}
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}
