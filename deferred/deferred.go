package deferred

import (
	"context"
	"sync"
)

// Deferred is a single eventual success-or-failure result.
type Deferred[T any] struct {
	run func(ctx context.Context) (T, error)

	// settled values are known before Await; used by Succeed and Fail.
	settled bool
	val     T
	err     error
}

// From creates a Deferred whose work is fn. fn runs once per Await.
func From[T any](fn func(ctx context.Context) (T, error)) *Deferred[T] {
	return &Deferred[T]{run: fn}
}

// Succeed returns a Deferred already settled with v.
func Succeed[T any](v T) *Deferred[T] {
	return &Deferred[T]{settled: true, val: v}
}

// Fail returns a Deferred already settled with err.
func Fail[T any](err error) *Deferred[T] {
	return &Deferred[T]{settled: true, err: err}
}

// Await runs the underlying work and returns its terminal state.
// If ctx is already done the work is not started and ctx.Err() is returned.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if d.settled {
		return d.val, d.err
	}
	return d.run(ctx)
}

// Memoize returns a Deferred that executes d at most once and replays the
// terminal state to every later Await. An attempt aborted by its caller's
// context is not cached.
func Memoize[T any](d *Deferred[T]) *Deferred[T] {
	var (
		mu   sync.Mutex
		done bool
		val  T
		err  error
	)
	return From(func(ctx context.Context) (T, error) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return val, err
		}
		v, e := d.Await(ctx)
		if e != nil && ctx.Err() != nil {
			return v, e
		}
		val, err, done = v, e, true
		return val, err
	})
}

// awaitable erases the type parameter so combinators can treat
// heterogeneous components uniformly.
type awaitable interface {
	awaitAny(ctx context.Context) (any, error)
	settledFailure() error
}

func (d *Deferred[T]) awaitAny(ctx context.Context) (any, error) {
	return d.Await(ctx)
}

func (d *Deferred[T]) settledFailure() error {
	if d.settled {
		return d.err
	}
	return nil
}
