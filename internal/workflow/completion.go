// pattern: Imperative Shell

package workflow

import (
	"context"
	"sync"
)

// Completion is a value produced later by a callback, typically a UI
// event handler. The first Resolve or Reject wins.
type Completion[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// NewCompletion creates an unresolved Completion.
func NewCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// Resolve completes with v. It reports whether this call completed it.
func (c *Completion[T]) Resolve(v T) bool {
	won := false
	c.once.Do(func() {
		c.value = v
		won = true
		close(c.done)
	})
	return won
}

// Reject completes with err.
func (c *Completion[T]) Reject(err error) bool {
	won := false
	c.once.Do(func() {
		c.err = err
		won = true
		close(c.done)
	})
	return won
}

// Done is closed once the completion is settled.
func (c *Completion[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until settled or ctx ends. A cancelled ctx yields
// ErrCancelled.
func (c *Completion[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ErrCancelled
	}
}
