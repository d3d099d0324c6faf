package pipeline

import "context"

// Map transforms each value using fn. An error from fn fails the sequence.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return newPipeline(func(ctx context.Context) Iterator[O] {
		return &mapIter[I, O]{source: p.create(ctx), fn: fn}
	})
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](p *Pipeline[T], fn func(T) bool) *Pipeline[T] {
	return newPipeline(func(ctx context.Context) Iterator[T] {
		return &filterIter[T]{source: p.create(ctx), fn: fn}
	})
}

// Tap calls fn as a side-effect for each value, then passes the value through unchanged.
// Use for logging, metrics, or mid-pipeline publishing.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return newPipeline(func(ctx context.Context) Iterator[T] {
		return &tapIter[T]{source: p.create(ctx), fn: fn}
	})
}

// Take yields at most n values and then completes without pulling further
// from the source.
func Take[T any](p *Pipeline[T], n int) *Pipeline[T] {
	return newPipeline(func(ctx context.Context) Iterator[T] {
		return &takeIter[T]{source: p.create(ctx), remaining: n}
	})
}

// ConcatMap maps each value to an inner pipeline and yields the inner values.
// Each inner pipeline is fully drained before the next upstream value is
// pulled, so inner sequences never interleave. The first failure, upstream
// or inner, fails the whole sequence.
func ConcatMap[I, O any](p *Pipeline[I], fn func(context.Context, I) (*Pipeline[O], error)) *Pipeline[O] {
	return newPipeline(func(ctx context.Context) Iterator[O] {
		return &concatMapIter[I, O]{source: p.create(ctx), fn: fn}
	})
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.fn(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

type takeIter[T any] struct {
	source    Iterator[T]
	remaining int
}

func (it *takeIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	if it.remaining <= 0 {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, false, err
	}
	it.remaining--
	return val, true, nil
}

func (it *takeIter[T]) Close() error { return it.source.Close() }

type concatMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) (*Pipeline[O], error)
	current Iterator[O]
}

func (it *concatMapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	var zero O
	for {
		if it.current != nil {
			val, ok, err := it.current.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if ok {
				return val, true, nil
			}
			_ = it.current.Close()
			it.current = nil
		}
		in, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		inner, err := it.fn(ctx, in)
		if err != nil {
			return zero, false, err
		}
		it.current = inner.create(ctx)
	}
}

func (it *concatMapIter[I, O]) Close() error {
	if it.current != nil {
		_ = it.current.Close()
	}
	return it.source.Close()
}

// Concat yields all values of each pipeline in order, one after another.
func Concat[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	return ConcatMap(FromSlice(pipelines), func(_ context.Context, p *Pipeline[T]) (*Pipeline[T], error) {
		return p, nil
	})
}
