package pipeline

import (
	"context"
	"sync"

	"github.com/kbukum/shopstream/tuple"
)

// Zip2 pairs the k-th values of a and b. Both sources are pulled
// concurrently for every pair. The sequence terminates as soon as either
// source terminates, with that source's completion or failure, and the
// pending pull on the other source is cancelled.
func Zip2[A, B any](a *Pipeline[A], b *Pipeline[B]) *Pipeline[tuple.Tuple2[A, B]] {
	return newPipeline(func(ctx context.Context) Iterator[tuple.Tuple2[A, B]] {
		return &zipIter[tuple.Tuple2[A, B]]{
			sources: []anyIter{erase(a.create(ctx)), erase(b.create(ctx))},
			build: func(v []any) tuple.Tuple2[A, B] {
				return tuple.Of2(as[A](v[0]), as[B](v[1]))
			},
		}
	})
}

// Zip3 is Zip2 for three sources.
func Zip3[A, B, C any](a *Pipeline[A], b *Pipeline[B], c *Pipeline[C]) *Pipeline[tuple.Tuple3[A, B, C]] {
	return newPipeline(func(ctx context.Context) Iterator[tuple.Tuple3[A, B, C]] {
		return &zipIter[tuple.Tuple3[A, B, C]]{
			sources: []anyIter{erase(a.create(ctx)), erase(b.create(ctx)), erase(c.create(ctx))},
			build: func(v []any) tuple.Tuple3[A, B, C] {
				return tuple.Of3(as[A](v[0]), as[B](v[1]), as[C](v[2]))
			},
		}
	})
}

// anyIter is an Iterator with its element type erased.
type anyIter interface {
	next(ctx context.Context) (any, bool, error)
	Close() error
}

type erased[T any] struct {
	it Iterator[T]
}

func erase[T any](it Iterator[T]) anyIter { return erased[T]{it: it} }

func (e erased[T]) next(ctx context.Context) (any, bool, error) { return e.it.Next(ctx) }

func (e erased[T]) Close() error { return e.it.Close() }

// as converts v to T, tolerating a nil interface value.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

type zipIter[O any] struct {
	sources []anyIter
	build   func([]any) O
}

type zipOutcome struct {
	ok  bool
	err error
}

func (it *zipIter[O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	pullCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	vals := make([]any, len(it.sources))
	outcomes := make(chan zipOutcome, len(it.sources))
	var wg sync.WaitGroup
	for i, src := range it.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok, err := src.next(pullCtx)
			if ok && err == nil {
				vals[i] = v
			}
			outcomes <- zipOutcome{ok: ok, err: err}
		}()
	}

	var terminal *zipOutcome
	for range it.sources {
		o := <-outcomes
		if terminal == nil && (o.err != nil || !o.ok) {
			terminal = &o
			cancel()
		}
	}
	wg.Wait()

	if terminal != nil {
		return zero, false, terminal.err
	}
	return it.build(vals), true, nil
}

func (it *zipIter[O]) Close() error {
	var firstErr error
	for _, src := range it.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
