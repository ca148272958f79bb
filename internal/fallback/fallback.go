// Package fallback scopes the field language-fallback mode.
//
// The mode travels on a context.Context instead of thread-local state, so
// concurrent field adds in a parallel build never observe each other's
// scope. A Switcher hands out the scoped context together with a release
// function that the caller defers.
package fallback

import (
	"context"
	"sync"
	"sync/atomic"
)

type modeKey struct{}

// WithMode returns a copy of ctx carrying the given fallback mode.
func WithMode(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, modeKey{}, enabled)
}

// Enabled reports whether language fallback is enabled on ctx.
// Contexts without a scope report false.
func Enabled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(modeKey{}).(bool)
	return v
}

// Switcher acquires a fallback scope.
type Switcher interface {
	// Enter returns a context carrying the requested mode and a release
	// function. Release must be called exactly once when the scope ends;
	// extra calls are no-ops.
	Enter(ctx context.Context, enabled bool) (context.Context, func())
}

// ContextSwitcher is the default Switcher. It keeps counters of open and
// total scopes for diagnostics.
type ContextSwitcher struct {
	active  atomic.Int64
	entered atomic.Int64
}

// NewSwitcher creates a ContextSwitcher.
func NewSwitcher() *ContextSwitcher {
	return &ContextSwitcher{}
}

// Enter implements Switcher.
func (s *ContextSwitcher) Enter(ctx context.Context, enabled bool) (context.Context, func()) {
	s.active.Add(1)
	s.entered.Add(1)

	var once sync.Once
	release := func() {
		once.Do(func() { s.active.Add(-1) })
	}
	return WithMode(ctx, enabled), release
}

// Active returns the number of scopes entered and not yet released.
func (s *ContextSwitcher) Active() int64 {
	return s.active.Load()
}

// Entered returns the total number of scopes entered.
func (s *ContextSwitcher) Entered() int64 {
	return s.entered.Load()
}

var _ Switcher = (*ContextSwitcher)(nil)
