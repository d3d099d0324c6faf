package bus

import (
	"context"
	"fmt"

	"github.com/kbukum/shopstream/deferred"
)

// Handler processes a message. The returned value is published to the
// stage's output channel, if it has one.
type Handler func(ctx context.Context, msg *Message) (any, error)

// Stage adapts a typed function into a Handler. A payload of the wrong type
// fails the message.
func Stage[I, O any](fn func(ctx context.Context, in I) (O, error)) Handler {
	return func(ctx context.Context, msg *Message) (any, error) {
		in, err := payloadAs[I](msg)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
}

// DeferredStage adapts a function returning a Deferred into a Handler. The
// Deferred is awaited with the delivery context.
func DeferredStage[I, O any](fn func(in I) *deferred.Deferred[O]) Handler {
	return func(ctx context.Context, msg *Message) (any, error) {
		in, err := payloadAs[I](msg)
		if err != nil {
			return nil, err
		}
		return fn(in).Await(ctx)
	}
}

// Sink adapts a terminal consumer into a Handler. Register it without an
// output channel.
func Sink[I any](fn func(ctx context.Context, in I) error) Handler {
	return func(ctx context.Context, msg *Message) (any, error) {
		in, err := payloadAs[I](msg)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, in)
	}
}

func payloadAs[T any](msg *Message) (T, error) {
	v, ok := msg.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("channel %s: payload type %T, want %T", msg.Channel, msg.Payload, zero)
	}
	return v, nil
}
