package deferred

import (
	"context"

	"github.com/kbukum/shopstream/tuple"
)

// CombineAll2 waits for a and b and succeeds with both values in input
// order. See All for failure semantics.
func CombineAll2[A, B any](a *Deferred[A], b *Deferred[B]) *Deferred[tuple.Tuple2[A, B]] {
	return From(func(ctx context.Context) (tuple.Tuple2[A, B], error) {
		vals, err := combineAll(ctx, a, b)
		if err != nil {
			return tuple.Tuple2[A, B]{}, err
		}
		return tuple.Of2(as[A](vals[0]), as[B](vals[1])), nil
	})
}

// CombineAll3 waits for a, b and c. See All for failure semantics.
func CombineAll3[A, B, C any](a *Deferred[A], b *Deferred[B], c *Deferred[C]) *Deferred[tuple.Tuple3[A, B, C]] {
	return From(func(ctx context.Context) (tuple.Tuple3[A, B, C], error) {
		vals, err := combineAll(ctx, a, b, c)
		if err != nil {
			return tuple.Tuple3[A, B, C]{}, err
		}
		return tuple.Of3(as[A](vals[0]), as[B](vals[1]), as[C](vals[2])), nil
	})
}

// All waits for every component and succeeds with their values in input
// order.
//
// Components run concurrently under a shared context. The first failure to
// resolve is reported immediately and the still-pending components are
// canceled. Components that are already failed when the combination starts
// win over running ones, lowest index first.
func All[T any](ds ...*Deferred[T]) *Deferred[[]T] {
	parts := make([]awaitable, len(ds))
	for i, d := range ds {
		parts[i] = d
	}
	return From(func(ctx context.Context) ([]T, error) {
		vals, err := combineAll(ctx, parts...)
		if err != nil {
			return nil, err
		}
		out := make([]T, len(vals))
		for i, v := range vals {
			out[i] = as[T](v)
		}
		return out, nil
	})
}

type outcome struct {
	index int
	val   any
	err   error
}

func combineAll(ctx context.Context, parts ...awaitable) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range parts {
		if err := p.settledFailure(); err != nil {
			return nil, err
		}
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so components finishing after an early return never block.
	results := make(chan outcome, len(parts))
	for i, p := range parts {
		go func(i int, p awaitable) {
			v, err := p.awaitAny(cctx)
			results <- outcome{index: i, val: v, err: err}
		}(i, p)
	}

	vals := make([]any, len(parts))
	for range parts {
		select {
		case o := <-results:
			if o.err != nil {
				return nil, o.err
			}
			vals[o.index] = o.val
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return vals, nil
}

// as asserts v to T, tolerating a nil interface for interface-typed T.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}
