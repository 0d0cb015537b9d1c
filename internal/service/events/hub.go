package events

import (
	"sync"
	"time"

	"github.com/zhouzirui/user-api/backend/internal/model/user"
)

// Type names a change to the user collection.
type Type string

const (
	UserCreated   Type = "user.created"
	UserUpdated   Type = "user.updated"
	UserDeleted   Type = "user.deleted"
	UsersReloaded Type = "users.reloaded"
)

// Event is delivered to every subscriber after a change has been persisted.
type Event struct {
	Type      Type       `json:"type"`
	User      *user.User `json:"user,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t Type, u *user.User) Event {
	return Event{Type: t, User: u, Timestamp: time.Now().Unix()}
}

// Publisher is the sending side of the hub.
type Publisher interface {
	Publish(ev Event)
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives events until Close is called or the hub closes.
type Subscription struct {
	hub *Hub
	ch  chan Event
}

// Events returns the receive channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the hub. It is safe to call twice.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers ev to every subscriber with room in its buffer.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}
