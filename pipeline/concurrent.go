package pipeline

import (
	"context"
)

// Buffer adds a buffered channel between pipeline stages.
// This decouples the production rate from the consumption rate.
// The producer blocks when the buffer is full, so no value is lost.
func Buffer[T any](p *Pipeline[T], size int) *Pipeline[T] {
	if size <= 0 {
		size = 1
	}
	return newPipeline(func(ctx context.Context) Iterator[T] {
		source := p.create(ctx)
		bufCtx, cancel := context.WithCancel(ctx)
		ch := make(chan result[T], size)
		done := make(chan struct{})

		go func() {
			defer close(done)
			defer close(ch)
			for {
				val, ok, err := source.Next(bufCtx)
				if err != nil {
					select {
					case ch <- result[T]{err: err}:
					case <-bufCtx.Done():
					}
					return
				}
				if !ok {
					return
				}
				select {
				case ch <- result[T]{val: val, ok: true}:
				case <-bufCtx.Done():
					return
				}
			}
		}()

		return &channelIter[T]{
			ch: ch,
			closer: func() error {
				cancel()
				<-done
				return source.Close()
			},
		}
	})
}
