package pipeline

import (
	"context"

	"github.com/kbukum/shopstream/deferred"
)

// FromDeferred creates a single-value pipeline from d. A failure of d fails
// the pipeline.
func FromDeferred[T any](d *deferred.Deferred[T]) *Pipeline[T] {
	return newPipeline(func(_ context.Context) Iterator[T] {
		return &deferredIter[T]{d: d}
	})
}

// FlatMapDeferred awaits d and continues with the pipeline fn derives from
// its value.
func FlatMapDeferred[T, O any](d *deferred.Deferred[T], fn func(context.Context, T) (*Pipeline[O], error)) *Pipeline[O] {
	return ConcatMap(FromDeferred(d), fn)
}

// ConcatMapDeferred maps each value to a Deferred and yields the resolved
// values in upstream order. Each Deferred resolves before the next upstream
// value is pulled. A failed Deferred fails the sequence.
func ConcatMapDeferred[I, O any](p *Pipeline[I], fn func(context.Context, I) *deferred.Deferred[O]) *Pipeline[O] {
	return newPipeline(func(ctx context.Context) Iterator[O] {
		return &concatDeferredIter[I, O]{source: p.create(ctx), fn: fn}
	})
}

type deferredIter[T any] struct {
	d    *deferred.Deferred[T]
	done bool
}

func (it *deferredIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	it.done = true
	val, err := it.d.Await(ctx)
	if err != nil {
		return zero, false, err
	}
	return val, true, nil
}

func (it *deferredIter[T]) Close() error { return nil }

type concatDeferredIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) *deferred.Deferred[O]
}

func (it *concatDeferredIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	in, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	val, err := it.fn(ctx, in).Await(ctx)
	if err != nil {
		return zero, false, err
	}
	return val, true, nil
}

func (it *concatDeferredIter[I, O]) Close() error { return it.source.Close() }
