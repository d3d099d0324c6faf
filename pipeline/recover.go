package pipeline

import "context"

// RecoverWithItem replaces a failure of p with a single fallback value,
// after which the sequence completes. Items emitted before the failure are
// kept.
func RecoverWithItem[T any](p *Pipeline[T], fallback T) *Pipeline[T] {
	return RecoverWith(p, func(error) T { return fallback })
}

// RecoverWith replaces a failure of p with the value computed by fn, after
// which the sequence completes.
func RecoverWith[T any](p *Pipeline[T], fn func(error) T) *Pipeline[T] {
	return newPipeline(func(ctx context.Context) Iterator[T] {
		return &recoverIter[T]{source: p.create(ctx), fn: fn}
	})
}

// RecoverWithCompletion turns a failure of p into normal completion.
func RecoverWithCompletion[T any](p *Pipeline[T]) *Pipeline[T] {
	return newPipeline(func(ctx context.Context) Iterator[T] {
		return &recoverIter[T]{source: p.create(ctx)}
	})
}

type recoverIter[T any] struct {
	source    Iterator[T]
	fn        func(error) T
	recovered bool
}

func (it *recoverIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.recovered {
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err == nil {
		return val, ok, nil
	}
	// A cancelled consumer is not a failure to recover from.
	if ctx.Err() != nil {
		return zero, false, err
	}
	it.recovered = true
	if it.fn == nil {
		return zero, false, nil
	}
	return it.fn(err), true, nil
}

func (it *recoverIter[T]) Close() error { return it.source.Close() }
