package deferred

import "context"

// Transform maps the eventual success value with fn. A failure passes
// through unchanged and fn is not called.
func Transform[T, U any](d *Deferred[T], fn func(T) U) *Deferred[U] {
	return From(func(ctx context.Context) (U, error) {
		v, err := d.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v), nil
	})
}

// Chain composes d with the Deferred produced by fn. A failure of d or of
// the produced value short-circuits.
func Chain[T, U any](d *Deferred[T], fn func(T) *Deferred[U]) *Deferred[U] {
	return From(func(ctx context.Context) (U, error) {
		v, err := d.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v).Await(ctx)
	})
}

// RecoverWithItem converts any failure of d into a success with fallback.
func RecoverWithItem[T any](d *Deferred[T], fallback T) *Deferred[T] {
	return RecoverWith(d, func(error) T { return fallback })
}

// RecoverWith converts any failure of d into a success computed from the
// error. Cancellation of the awaiting caller is not recovered.
func RecoverWith[T any](d *Deferred[T], fn func(error) T) *Deferred[T] {
	return From(func(ctx context.Context) (T, error) {
		v, err := d.Await(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
		return fn(err), nil
	})
}

// Invoke calls fn with the success value as a side effect.
func Invoke[T any](d *Deferred[T], fn func(T)) *Deferred[T] {
	return From(func(ctx context.Context) (T, error) {
		v, err := d.Await(ctx)
		if err == nil {
			fn(v)
		}
		return v, err
	})
}

// InvokeOnFailure calls fn with the failure as a side effect. The failure
// still propagates.
func InvokeOnFailure[T any](d *Deferred[T], fn func(error)) *Deferred[T] {
	return From(func(ctx context.Context) (T, error) {
		v, err := d.Await(ctx)
		if err != nil {
			fn(err)
		}
		return v, err
	})
}
