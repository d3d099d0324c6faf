// Package pipeline provides lazy, pull-based async sequences and the
// operators that compose them.
//
// A Pipeline produces zero or more values followed by exactly one terminal
// event: completion, or failure. Pipelines are cold: no work happens until
// values are pulled via Collect, Drain, ForEach, Iter, or Subscribe, and each
// of those starts a fresh activation. Each stage pulls from the previous
// stage on demand, so a slow consumer naturally slows its sources.
//
// Iterators latch their terminal event. Once Next reports completion or a
// failure, every later call reports the same thing and never a value.
//
// # Operators
//
// Synchronous (single-goroutine, order preserving):
//
//   - Map: transform each value
//   - Filter: keep values matching a predicate
//   - Tap: side-effect without altering the value
//   - Take: the first n values
//   - ConcatMap: flatten inner pipelines one at a time, in upstream order
//   - ConcatMapDeferred: await one Deferred per value, in upstream order
//   - RecoverWithItem / RecoverWith / RecoverWithCompletion: end a failed
//     sequence with a fallback value or a clean completion
//
// Concurrent (helper goroutines bound to the activation):
//
//   - Zip2 / Zip3: pair the k-th values of every source
//   - Buffer: decouple producer/consumer with a buffered channel
//   - OnOverflowDrop: drop values the consumer is not ready for
//
// Sources: FromSlice, From, FromFunc, FromDeferred, FlatMapDeferred,
// Ticker, Empty, Failed.
//
// # Usage
//
//	ticks := pipeline.Ticker(time.Second)
//	guarded := pipeline.OnOverflowDrop(ticks)
//	recs := pipeline.ConcatMapDeferred(guarded, func(_ context.Context, _ int64) *deferred.Deferred[Product] {
//	    return products.RecommendedOne()
//	})
//	sub := pipeline.Subscribe(ctx, recs, pipeline.Subscriber[Product]{
//	    OnItem: func(p Product) { fmt.Println(p.Name) },
//	})
//	defer sub.Cancel()
package pipeline
