package sse

import (
	"encoding/json"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/shopstream/logger"
)

// Client is a connected hub subscriber.
type Client struct {
	id     string
	topic  string
	events chan Event
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Topic returns the topic the client subscribed to.
func (c *Client) Topic() string { return c.topic }

// Events returns the channel of events addressed to the client. It is
// closed when the client is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

type broadcast struct {
	pattern string
	event   Event
}

// Hub manages subscribed clients and fans published events out to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	cfg Config
	log *logger.Logger

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a hub. Run must be called for it to deliver anything.
func NewHub(cfg Config) *Hub {
	cfg.ApplyDefaults()
	return &Hub{
		cfg:        cfg,
		log:        logger.WithComponent("sse"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, cfg.ClientBuffer),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.Fields("client_id", c.id, "topic", c.topic, "total_clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client unregistered", logger.Fields("client_id", c.id, "total_clients", total))

		case b := <-h.broadcast:
			h.deliver(b)
		}
	}
}

// Stop closes every client and makes Run return. Safe to call repeatedly.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Subscribe registers a new client for topic. It returns nil once the hub
// has stopped.
func (h *Hub) Subscribe(topic string) *Client {
	c := &Client{id: uuid.NewString(), topic: topic, events: make(chan Event, h.cfg.ClientBuffer)}
	select {
	case h.register <- c:
		return c
	case <-h.done:
		return nil
	}
}

// Unsubscribe removes c from the hub and closes its event channel.
func (h *Hub) Unsubscribe(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends ev to every client whose topic matches pattern (path.Match
// syntax, so "greetings" or "orders/*"). It never blocks: when the hub is
// saturated or stopped the event is dropped and false is returned.
func (h *Hub) Publish(pattern string, ev Event) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- broadcast{pattern: pattern, event: ev}:
		return true
	default:
		h.log.Warn("Hub saturated, dropping event", logger.Fields("pattern", pattern))
		return false
	}
}

// PublishJSON publishes v encoded as JSON.
func (h *Hub) PublishJSON(pattern, name string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Encoding hub event failed", logger.ErrorFields("publish", err))
		return false
	}
	return h.Publish(pattern, Event{Name: name, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(b broadcast) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for _, c := range h.clients {
		ok, err := path.Match(b.pattern, c.topic)
		if err != nil {
			h.log.Error("Invalid topic pattern", logger.Fields("pattern", b.pattern, logger.FieldError, err.Error()))
			return
		}
		if !ok {
			continue
		}
		select {
		case c.events <- b.event:
			matched++
		default:
			h.log.Warn("Client too slow, dropping event", logger.Fields("client_id", c.id))
		}
	}
	h.log.Debug("Event broadcast", logger.Fields("pattern", b.pattern, "match_count", matched))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

// ServeHub streams the events of topic to the request until the client
// leaves or the hub stops.
func ServeHub(h *Hub, w http.ResponseWriter, r *http.Request, topic string) {
	flusher, err := prepare(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	c := h.Subscribe(topic)
	if c == nil {
		return
	}
	defer h.Unsubscribe(c)

	hello, _ := json.Marshal(map[string]string{"client_id": c.id, "topic": topic})
	_ = Event{Name: EventConnected, Data: hello}.Encode(w)
	flusher.Flush()

	keepAlive := time.NewTicker(h.cfg.KeepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			if err := ev.Encode(w); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if err := writeKeepAlive(w); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
