package everytriv

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Interceptor is one step of a Chain.
type Interceptor[V any] interface {
	Intercept(ctx context.Context, v V) (V, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc[V any] func(ctx context.Context, v V) (V, error)

// Intercept implements Interceptor.
func (f InterceptorFunc[V]) Intercept(ctx context.Context, v V) (V, error) {
	return f(ctx, v)
}

// RegisteredInterceptor is a chain entry.
type RegisteredInterceptor[V any] struct {
	ID       string
	Handler  Interceptor[V]
	Priority int
	Enabled  bool
}

type useOptions struct {
	priority int
	enabled  bool
}

// UseOption configures a registration.
type UseOption func(*useOptions)

// WithPriority sets the priority; lower values run earlier.
func WithPriority(p int) UseOption {
	return func(o *useOptions) {
		o.priority = p
	}
}

// Disabled registers the interceptor switched off.
func Disabled() UseOption {
	return func(o *useOptions) {
		o.enabled = false
	}
}

// Chain folds a value through interceptors in ascending priority order, ties
// in registration order. A tolerant chain logs a failing interceptor and
// continues with the value it was given; a strict chain stops at the first error.
type Chain[V any] struct {
	name     string
	tolerant bool
	logger   func() Logger

	mu      sync.RWMutex
	entries []RegisteredInterceptor[V]
}

func newChain[V any](name string, tolerant bool, logger func() Logger) *Chain[V] {
	if logger == nil {
		logger = func() Logger { return nil }
	}
	return &Chain[V]{name: name, tolerant: tolerant, logger: logger}
}

// NewChain returns a strict chain.
func NewChain[V any](name string) *Chain[V] {
	return newChain[V](name, false, nil)
}

// Use registers h and returns its id.
func (c *Chain[V]) Use(h Interceptor[V], opts ...UseOption) string {
	o := useOptions{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}

	entry := RegisteredInterceptor[V]{
		ID:       uuid.NewString(),
		Handler:  h,
		Priority: o.priority,
		Enabled:  o.enabled,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, entry)
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].Priority < c.entries[j].Priority
	})
	return entry.ID
}

// UseFunc registers a plain function.
func (c *Chain[V]) UseFunc(fn func(ctx context.Context, v V) (V, error), opts ...UseOption) string {
	return c.Use(InterceptorFunc[V](fn), opts...)
}

// Eject removes the interceptor with id.
func (c *Chain[V]) Eject(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, entry := range c.entries {
		if entry.ID == id {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

// SetEnabled toggles the interceptor with id.
func (c *Chain[V]) SetEnabled(id string, enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.entries[i].ID == id {
			c.entries[i].Enabled = enabled
			return true
		}
	}
	return false
}

// Clear removes every interceptor.
func (c *Chain[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
}

// Count returns the number of registered interceptors, enabled or not.
func (c *Chain[V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Entries returns a snapshot in execution order.
func (c *Chain[V]) Entries() []RegisteredInterceptor[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]RegisteredInterceptor[V], len(c.entries))
	copy(out, c.entries)
	return out
}

// Execute folds v through every enabled interceptor.
func (c *Chain[V]) Execute(ctx context.Context, v V) (V, error) {
	for _, entry := range c.Entries() {
		if !entry.Enabled {
			continue
		}

		if !c.tolerant {
			next, err := entry.Handler.Intercept(ctx, v)
			if err != nil {
				return v, err
			}
			v = next
			continue
		}

		next, err := c.safeIntercept(ctx, entry, v)
		if err != nil {
			if logger := c.logger(); logger != nil {
				logger.Warn("Interceptor failed", "chain", c.name, "interceptorID", entry.ID, "error", err.Error())
			}
			continue
		}
		v = next
	}
	return v, nil
}

func (c *Chain[V]) safeIntercept(ctx context.Context, entry RegisteredInterceptor[V], v V) (out V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interceptor panic: %v", r)
		}
	}()
	return entry.Handler.Intercept(ctx, v)
}
