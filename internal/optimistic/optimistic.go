// Package optimistic provides a snapshot/apply/commit-or-revert runner
// for callers that show a speculative result immediately and reconcile
// against the authoritative one.
package optimistic

import (
	"context"
	"sync"
)

// Runner holds a value and runs optimistic mutations against it. The
// clone function must produce an independent copy; mutations observed
// through Get never alias the internal value.
type Runner[T any] struct {
	mu    sync.Mutex
	value T
	clone func(T) T
}

func New[T any](initial T, clone func(T) T) *Runner[T] {
	return &Runner[T]{value: clone(initial), clone: clone}
}

// Get returns a copy of the current value.
func (r *Runner[T]) Get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clone(r.value)
}

// Set replaces the current value.
func (r *Runner[T]) Set(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = r.clone(v)
}

// Run applies the speculative mutation immediately, then reconciles
// with commit's authoritative result. If commit fails the value reverts
// to its pre-mutation snapshot and the error is returned.
func (r *Runner[T]) Run(ctx context.Context, apply func(T) T, commit func(context.Context, T) (T, error)) (T, error) {
	r.mu.Lock()
	snapshot := r.clone(r.value)
	speculative := apply(r.clone(r.value))
	r.value = speculative
	r.mu.Unlock()

	authoritative, err := commit(ctx, r.clone(speculative))

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.value = snapshot
		return r.clone(snapshot), err
	}
	r.value = r.clone(authoritative)
	return r.clone(authoritative), nil
}
