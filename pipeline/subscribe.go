package pipeline

import (
	"context"
	"sync"
)

// Subscriber receives the events of a subscribed pipeline. Any callback may
// be nil. OnItem returning an error cancels the subscription and reports the
// error to OnFailure.
type Subscriber[T any] struct {
	OnItem     func(T) error
	OnFailure  func(error)
	OnComplete func()
}

// Subscription is a running pipeline activation started by Subscribe.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe activates p on its own goroutine and pushes its events to s.
// Exactly one of OnFailure or OnComplete is called, unless the subscription
// is cancelled first, in which case neither is.
func Subscribe[T any](ctx context.Context, p *Pipeline[T], s Subscriber[T]) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		iter := p.create(subCtx)
		defer iter.Close()
		for {
			val, ok, err := iter.Next(subCtx)
			if subCtx.Err() != nil {
				return
			}
			if err != nil {
				if s.OnFailure != nil {
					s.OnFailure(err)
				}
				return
			}
			if !ok {
				if s.OnComplete != nil {
					s.OnComplete()
				}
				return
			}
			if s.OnItem != nil {
				if err := s.OnItem(val); err != nil {
					if s.OnFailure != nil {
						s.OnFailure(err)
					}
					return
				}
			}
		}
	}()
	return sub
}

// Cancel stops the subscription and waits until its goroutine has released
// every resource. It must not be called from a Subscriber callback.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the subscription has terminated.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
