package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the acknowledgment state of a message.
type State int32

const (
	StateCreated State = iota
	StateDelivered
	StateAcked
	StateNacked
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDelivered:
		return "delivered"
	case StateAcked:
		return "acked"
	case StateNacked:
		return "nacked"
	default:
		return "unknown"
	}
}

// Message is a payload travelling through a channel.
type Message struct {
	ID        string
	Channel   string
	Payload   any
	CreatedAt time.Time

	state atomic.Int32

	mu  sync.Mutex
	err error
}

func newMessage(channel string, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Channel:   channel,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// State returns the current state.
func (m *Message) State() State {
	return State(m.state.Load())
}

// Ack marks a delivered message as successfully processed. Only the first
// Ack or Nack takes effect; it returns false when the message was not in
// the delivered state.
func (m *Message) Ack() bool {
	return m.state.CompareAndSwap(int32(StateDelivered), int32(StateAcked))
}

// Nack marks a delivered message as failed with err. Only the first Ack or
// Nack takes effect.
func (m *Message) Nack(err error) bool {
	if !m.state.CompareAndSwap(int32(StateDelivered), int32(StateNacked)) {
		return false
	}
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	return true
}

// Err returns the error a nacked message was rejected with.
func (m *Message) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Message) markDelivered() bool {
	return m.state.CompareAndSwap(int32(StateCreated), int32(StateDelivered))
}
