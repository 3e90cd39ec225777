// Package app owns the process-wide embedder and vector index.
package app

import (
	"context"
	"sync"
)

// Lazy constructs a value on first use. Concurrent first callers wait for the
// same construction. A failed construction is not kept; the next Get retries.
type Lazy[T any] struct {
	mu    sync.Mutex
	newFn func(ctx context.Context) (T, error)
	value T
	done  bool
}

// NewLazy returns a Lazy that builds its value with newFn.
func NewLazy[T any](newFn func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{newFn: newFn}
}

// Get returns the value, constructing it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return l.value, nil
	}
	v, err := l.newFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.value, l.done = v, true
	return v, nil
}

// Peek returns the value only if it was already constructed.
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.done
}
