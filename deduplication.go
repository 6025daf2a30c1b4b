package everytriv

import (
	"context"
	"sync"
)

// InFlight is one shared round-trip. Its outcome is published exactly once.
type InFlight struct {
	response *Response
	err      error
	done     chan struct{}
	mu       sync.Mutex
	waiters  int
	settled  bool
}

// publish records the outcome and releases waiters. Later calls are no-ops.
func (f *InFlight) publish(resp *Response, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.settled {
		return
	}
	f.settled = true
	f.response = resp
	f.err = err
	close(f.done)
}

// Wait blocks until the owning request completes or ctx is done.
func (f *InFlight) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.response, f.err
	case <-ctx.Done():
		return nil, cancellationError(ctx, ctx.Err())
	}
}

// Waiters returns the number of callers sharing this entry, owner included.
func (f *InFlight) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiters
}

// DeduplicationRegistry tracks in-flight requests by key so concurrent
// identical calls share one round-trip.
type DeduplicationRegistry struct {
	mu      sync.Mutex
	entries map[string]*InFlight
}

// NewDeduplicationRegistry returns an empty registry.
func NewDeduplicationRegistry() *DeduplicationRegistry {
	return &DeduplicationRegistry{
		entries: make(map[string]*InFlight),
	}
}

// Register returns the existing entry for key (owner=false) or inserts a new
// one (owner=true). The owner must call Complete.
func (r *DeduplicationRegistry) Register(key string) (*InFlight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &InFlight{
		done:    make(chan struct{}),
		waiters: 1,
	}
	r.entries[key] = entry
	return entry, true
}

// Get returns the in-flight entry for key, if any.
func (r *DeduplicationRegistry) Get(key string) (*InFlight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	return entry, ok
}

// Remove drops key and fails its waiters. A later Complete by the owner
// leaves the aborted outcome in place.
func (r *DeduplicationRegistry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return
	}
	delete(r.entries, key)
	entry.publish(nil, errDeduplicationAborted())
}

func errDeduplicationAborted() *APIError {
	return &APIError{Kind: KindNetwork, Message: "deduplicated request aborted"}
}

// Complete removes key and releases waiters under the same lock, so a caller
// arriving afterwards always starts a fresh round-trip.
func (r *DeduplicationRegistry) Complete(key string, entry *InFlight, resp *Response, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[key] == entry {
		delete(r.entries, key)
	}

	entry.publish(resp, err)
}

// Len returns the number of in-flight keys.
func (r *DeduplicationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Do runs fn once per key among concurrent callers. The removal is deferred at
// registration time so no key outlives its call, even when fn panics.
func (r *DeduplicationRegistry) Do(ctx context.Context, key string, fn func() (*Response, error)) (resp *Response, err error, shared bool) {
	entry, owner := r.Register(key)
	if !owner {
		resp, err = entry.Wait(ctx)
		return resp, err, true
	}

	completed := false
	defer func() {
		if !completed {
			r.Complete(key, entry, nil, errDeduplicationAborted())
		}
	}()

	resp, err = fn()
	r.Complete(key, entry, resp, err)
	completed = true
	return resp, err, false
}
