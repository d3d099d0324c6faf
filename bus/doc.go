// Package bus is an in-process registry of named channels that hands
// messages from publishers to processing stages.
//
// Every channel has a bounded FIFO queue and at most one stage. A stage
// reads from its input channel and may publish its result to an output
// channel, which is the input of the next stage:
//
//	b.RegisterStage("userChannel", "hello", bus.Stage(greet))
//	b.RegisterStage("hello", "", bus.Sink(show))
//	b.Publish("userChannel", int64(42))
//
// A message is acknowledged only after its handler succeeded and, for a
// stage with an output channel, its result was accepted downstream. A
// failing or panicking handler nacks the message and the message is kept
// in a bounded dead-letter list. Messages are never redelivered.
package bus
