package pipeline

import (
	"context"
	"sync/atomic"
)

// DropOption configures OnOverflowDrop.
type DropOption[T any] func(*dropConfig[T])

type dropConfig[T any] struct {
	onDrop  func(T)
	counter *atomic.Int64
}

// WithOnDrop registers a hook called for every discarded value.
// The hook runs on the producer goroutine and must not block.
func WithOnDrop[T any](fn func(T)) DropOption[T] {
	return func(c *dropConfig[T]) { c.onDrop = fn }
}

// WithDropCounter increments counter for every discarded value.
func WithDropCounter[T any](counter *atomic.Int64) DropOption[T] {
	return func(c *dropConfig[T]) { c.counter = counter }
}

// OnOverflowDrop decouples p from its consumer with a drop policy.
// Upstream is pulled on its own goroutine at its own pace. A value is handed
// over only if the consumer is currently waiting in Next; otherwise it is
// discarded. Nothing is buffered, so the consumer never holds a backlog.
// Completion and failure are always delivered.
func OnOverflowDrop[T any](p *Pipeline[T], opts ...DropOption[T]) *Pipeline[T] {
	var cfg dropConfig[T]
	for _, o := range opts {
		o(&cfg)
	}
	return newPipeline(func(ctx context.Context) Iterator[T] {
		pumpCtx, cancel := context.WithCancel(ctx)
		it := &dropIter[T]{
			source:   p.create(pumpCtx),
			items:    make(chan T),
			terminal: make(chan error, 1),
			done:     make(chan struct{}),
			cancel:   cancel,
		}
		go it.pump(pumpCtx, cfg)
		return it
	})
}

type dropIter[T any] struct {
	source   Iterator[T]
	items    chan T
	terminal chan error
	done     chan struct{}
	cancel   context.CancelFunc
	closed   bool
}

func (it *dropIter[T]) pump(ctx context.Context, cfg dropConfig[T]) {
	defer close(it.done)
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			if ctx.Err() == nil {
				it.terminal <- err
			}
			return
		}
		select {
		case it.items <- val:
		default:
			if cfg.counter != nil {
				cfg.counter.Add(1)
			}
			if cfg.onDrop != nil {
				cfg.onDrop(val)
			}
		}
	}
}

func (it *dropIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case val := <-it.items:
		return val, true, nil
	case err := <-it.terminal:
		return zero, false, err
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (it *dropIter[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.cancel()
	<-it.done
	return it.source.Close()
}
