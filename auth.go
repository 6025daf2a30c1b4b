package everytriv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/singleflight"
)

// AuthInterceptorPriority places the auth header injector ahead of every
// other request interceptor.
const AuthInterceptorPriority = -1 << 20

// DefaultRefreshPath is the refresh endpoint relative to the base URL.
const DefaultRefreshPath = "/auth/refresh"

// TokenPair is the result of a refresh. RefreshToken is empty when the server
// does not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

// Refresh implements Refresher.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return f(ctx, refreshToken)
}

// HTTPRefresher posts {"refreshToken": ...} to URL over the raw transport,
// bypassing interceptors and retries.
type HTTPRefresher struct {
	URL       string
	Transport Transport
}

// Refresh implements Refresher.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	payload, err := sjson.SetBytes(nil, "refreshToken", refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(payload))
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.Transport.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh request failed: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenPair{}, normalizeError(resp.StatusCode, body, req)
	}

	pair := TokenPair{
		AccessToken:  firstString(body, "access_token", "data.access_token", "accessToken", "data.accessToken"),
		RefreshToken: firstString(body, "refresh_token", "data.refresh_token", "refreshToken", "data.refreshToken"),
	}
	if pair.AccessToken == "" {
		return TokenPair{}, errors.New("refresh response carries no access token")
	}
	return pair, nil
}

func firstString(body []byte, paths ...string) string {
	for _, res := range gjson.GetManyBytes(body, paths...) {
		if res.Type == gjson.String && res.String() != "" {
			return res.String()
		}
	}
	return ""
}

// authCoordinator owns the refresh-and-replay flow. Concurrent refreshes
// coalesce into one refresher call.
type authCoordinator struct {
	store     TokenStore
	refresher Refresher
	group     singleflight.Group
	client    *Client
}

// defaultRefreshTimeout bounds a shared refresh when the client has no timeout.
const defaultRefreshTimeout = 30 * time.Second

// refresh performs (or joins) one token refresh and stores the result. The
// shared refresh is detached from the caller that started it; every caller
// stops waiting when its own ctx is done.
func (a *authCoordinator) refresh(ctx context.Context) error {
	ch := a.group.DoChan("refresh", func() (any, error) {
		timeout := a.client.timeout
		if timeout <= 0 {
			timeout = defaultRefreshTimeout
		}
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		err := a.runRefresh(refreshCtx)
		a.client.metrics.RecordTokenRefresh(refreshOutcome(err))
		return nil, err
	})

	select {
	case res := <-ch:
		a.client.debugLog(a.client.debug.LogAuth, "Token refresh", "outcome", refreshOutcome(res.Err), "shared", res.Shared)
		return res.Err
	case <-ctx.Done():
		return cancellationError(ctx, ctx.Err())
	}
}

func (a *authCoordinator) runRefresh(ctx context.Context) error {
	refreshToken, err := a.store.GetString(ctx, RefreshTokenKey)
	switch {
	case errors.Is(err, ErrTokenNotFound), err == nil && refreshToken == "":
		return ErrNoRefreshToken
	case err != nil:
		return fmt.Errorf("%w: %w", ErrTokenStore, err)
	}
	if a.refresher == nil {
		return errors.New("no refresher configured")
	}

	pair, err := a.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	if err := a.store.Set(ctx, AccessTokenKey, pair.AccessToken); err != nil {
		return fmt.Errorf("%w: failed to store access token: %w", ErrTokenStore, err)
	}
	if pair.RefreshToken != "" {
		if err := a.store.Set(ctx, RefreshTokenKey, pair.RefreshToken); err != nil {
			return fmt.Errorf("%w: failed to store refresh token: %w", ErrTokenStore, err)
		}
	}
	return nil
}

func refreshOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoRefreshToken):
		return "no_refresh_token"
	case errors.Is(err, ErrTokenStore):
		return "store_error"
	default:
		return "failure"
	}
}

// clearTokens removes both tokens. It runs even when ctx is cancelled.
func (a *authCoordinator) clearTokens(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
		if err := a.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrTokenNotFound) {
			if a.client.logger != nil {
				a.client.logger.Warn("Failed to clear token", "key", key, "error", err.Error())
			}
		}
	}
}

// handleUnauthorized runs the 401 state machine for one logical call: refresh
// once, replay the whole request, and expire the session on any further 401
// or on refresh failure.
func (a *authCoordinator) handleUnauthorized(ctx context.Context, st *callState, original *APIError, replay func(context.Context) (*Response, error)) (*Response, error) {
	if st.refreshed {
		a.clearTokens(ctx)
		return nil, sessionExpired(original, nil)
	}
	st.refreshed = true

	if err := a.refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, cancellationError(ctx, err)
		}
		if errors.Is(err, ErrTokenStore) {
			if a.client.logger != nil {
				a.client.logger.Warn("Token store failed during refresh", "error", err.Error())
			}
			original.Cause = err
			return nil, original
		}
		a.clearTokens(ctx)
		return nil, sessionExpired(original, err)
	}

	resp, err := replay(ctx)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.Kind == KindUnauthorized {
			a.clearTokens(ctx)
			return nil, sessionExpired(apiErr, nil)
		}
		return nil, err
	}
	return resp, nil
}

func sessionExpired(from *APIError, cause error) *APIError {
	apiErr := &APIError{
		Kind:          KindSessionExpired,
		Message:       "session expired",
		StatusCode:    http.StatusUnauthorized,
		IsClientError: true,
		Timestamp:     time.Now(),
		Cause:         cause,
	}
	if from != nil {
		apiErr.URL = from.URL
		apiErr.Method = from.Method
		apiErr.Details = from.Details
		apiErr.RequestID = from.RequestID
	}
	return apiErr
}

// AuthHeaderInjector adds "Authorization: Bearer <token>" from the token
// store. With a positive ProactiveSkew it refreshes JWT access tokens that
// expire within the skew before sending them.
type AuthHeaderInjector struct {
	Store         TokenStore
	ProactiveSkew time.Duration

	coordinator *authCoordinator
}

// Intercept implements Interceptor.
func (i *AuthHeaderInjector) Intercept(ctx context.Context, req *http.Request) (*http.Request, error) {
	token, err := i.Store.GetString(ctx, AccessTokenKey)
	if err != nil || token == "" {
		return req, nil
	}

	if i.ProactiveSkew > 0 && i.coordinator != nil && tokenExpiresWithin(token, i.ProactiveSkew) {
		if err := i.coordinator.refresh(ctx); err == nil {
			if fresh, err := i.Store.GetString(ctx, AccessTokenKey); err == nil && fresh != "" {
				token = fresh
			}
		}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// tokenExpiresWithin reports whether a JWT's exp claim falls inside skew.
// Opaque tokens and tokens without exp never expire here. The signature is not
// checked; only the server can do that.
func tokenExpiresWithin(token string, skew time.Duration) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < skew
}
