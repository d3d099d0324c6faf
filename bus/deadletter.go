package bus

import (
	"sync"
	"time"
)

// DeadLetter records a message whose processing failed.
type DeadLetter struct {
	MessageID string    `json:"message_id"`
	Channel   string    `json:"channel"`
	Payload   any       `json:"payload"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}

// deadLetters is a bounded list that drops the oldest entry when full.
type deadLetters struct {
	mu       sync.Mutex
	capacity int
	items    []DeadLetter
	total    int64
}

func (d *deadLetters) add(dl DeadLetter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.total++
	if d.capacity == 0 {
		return
	}
	if len(d.items) == d.capacity {
		copy(d.items, d.items[1:])
		d.items = d.items[:len(d.items)-1]
	}
	d.items = append(d.items, dl)
}

func (d *deadLetters) snapshot() []DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeadLetter, len(d.items))
	copy(out, d.items)
	return out
}

func (d *deadLetters) count() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}
