package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Ticker emits 0, 1, 2, ... one value per period, starting after the first
// period has elapsed. Ticks are produced on wall-clock time regardless of
// how fast values are pulled; a tick that arrives while nobody is pulling is
// held in the single slot of the underlying time.Ticker and later ticks are
// skipped. Closing the iterator stops the timer.
func Ticker(period time.Duration) *Pipeline[int64] {
	if period <= 0 {
		return Failed[int64](fmt.Errorf("pipeline: ticker period must be positive, got %s", period))
	}
	return newPipeline(func(_ context.Context) Iterator[int64] {
		return &tickerIter{ticker: time.NewTicker(period)}
	})
}

type tickerIter struct {
	ticker *time.Ticker
	n      int64
}

func (it *tickerIter) Next(ctx context.Context) (int64, bool, error) {
	select {
	case <-it.ticker.C:
		n := it.n
		it.n++
		return n, true, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

func (it *tickerIter) Close() error {
	it.ticker.Stop()
	return nil
}
