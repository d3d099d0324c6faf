package bus

import (
	"context"
	"fmt"

	"github.com/kbukum/shopstream/component"
	"github.com/kbukum/shopstream/logger"
)

var _ component.Component = (*Bus)(nil)
var _ component.Describable = (*Bus)(nil)

// Name implements component.Component.
func (b *Bus) Name() string { return "bus" }

// Start launches a delivery loop for every channel that has a stage.
// Stages registered later start on registration.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return ErrClosed
	}
	if b.started {
		return nil
	}
	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	b.started = true
	for _, ch := range b.channels {
		b.runLocked(ch)
	}
	b.log.Info("Bus started", logger.Fields("channels", len(b.channels)))
	return nil
}

// Stop refuses further publishes, cancels in-flight handlers and waits for
// the delivery loops to exit. Queued messages are discarded.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	pending := 0
	for _, ch := range b.channels {
		pending += len(ch.queue)
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("bus stop: %w", ctx.Err())
	}

	b.log.Info("Bus stopped", logger.Fields("discarded", pending))
	return nil
}

// Health implements component.Component. The bus is degraded when a
// channel queue is more than three quarters full.
func (b *Bus) Health(_ context.Context) component.Health {
	b.mu.RLock()
	defer b.mu.RUnlock()

	h := component.Health{Name: b.Name(), Status: component.StatusHealthy}
	switch {
	case b.stopped:
		h.Status, h.Message = component.StatusUnhealthy, "stopped"
	case !b.started:
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	default:
		for name, ch := range b.channels {
			if len(ch.queue)*4 > cap(ch.queue)*3 {
				h.Status = component.StatusDegraded
				h.Message = fmt.Sprintf("channel %s backlog %d/%d", name, len(ch.queue), cap(ch.queue))
				break
			}
		}
	}
	return h
}

// Describe implements component.Describable.
func (b *Bus) Describe() component.Description {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return component.Description{
		Name:    "Channel Bus",
		Type:    "bus",
		Details: fmt.Sprintf("channels=%d queue=%d dead_letters=%d", len(b.channels), b.cfg.QueueSize, b.dead.count()),
	}
}
