// Package everytriv is the request pipeline behind every EveryTriv API call.
// A single Client fronts the REST backend and adds:
//
//   - Request de‑duplication (concurrent identical calls share one round‑trip)
//   - Retries with linear or exponential backoff + bounded jitter
//   - A per‑attempt timeout composed with the caller's context
//   - Request, response and error interceptor chains ordered by priority
//   - Bearer token injection with one refresh‑and‑replay per 401
//   - A normalized {data, success, statusCode, timestamp} response and a
//     uniform APIError for every failure
//   - Prometheus metrics and structured debug logging
//
// Typical usage:
//
//	client := everytriv.New(
//	    everytriv.WithBaseURL("https://api.everytriv.example"),
//	    everytriv.WithTokenStore(tokenstore.NewMemoryStore()),
//	    everytriv.WithMaxAttempts(4),
//	)
//	board, err := everytriv.Get[[]Entry](ctx, client, "/leaderboard/global", everytriv.WithQuery("limit", "10"))
//
// Only network failures and 5xx responses are retried. A 401 triggers a token
// refresh and a full replay; a second 401 clears the stored tokens and yields
// an error matching ErrSessionExpired.
package everytriv
