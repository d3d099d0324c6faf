// Package messaging registers the greeting stages on the bus.
//
// A user id published on userChannel becomes "Hello chained - <id>" on the
// hello channel, whose terminal stage logs it and broadcasts it to SSE
// clients subscribed to the greetings topic.
package messaging

import (
	"context"
	"fmt"

	"github.com/kbukum/shopstream/bus"
	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/sse"
)

// Channel and topic names.
const (
	UserChannel    = "userChannel"
	HelloChannel   = "hello"
	GreetingsTopic = "greetings"
	GreetingEvent  = "greeting"
)

// Registrar registers stages. *bus.Bus satisfies it.
type Registrar interface {
	RegisterStage(input, output string, handler bus.Handler) error
}

// Greet builds the greeting for a user id.
func Greet(id int64) *deferred.Deferred[string] {
	return deferred.Succeed(fmt.Sprintf("Hello chained - %d", id))
}

// Register wires userChannel -> hello -> (log, broadcast). A nil hub only
// logs greetings.
func Register(b Registrar, hub *sse.Hub, log *logger.Logger) error {
	log = log.WithComponent("messaging")

	if err := b.RegisterStage(UserChannel, HelloChannel, bus.DeferredStage(Greet)); err != nil {
		return fmt.Errorf("register %s stage: %w", UserChannel, err)
	}

	broadcast := bus.Sink(func(_ context.Context, msg string) error {
		log.Info(msg, logger.Fields(logger.FieldChannel, HelloChannel))
		if hub != nil && !hub.Publish(GreetingsTopic, sse.Event{Name: GreetingEvent, Data: []byte(msg)}) {
			log.Debug("Greeting not broadcast", logger.Fields("topic", GreetingsTopic))
		}
		return nil
	})
	if err := b.RegisterStage(HelloChannel, "", broadcast); err != nil {
		return fmt.Errorf("register %s stage: %w", HelloChannel, err)
	}
	return nil
}
