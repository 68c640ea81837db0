package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Broker fans limit events out to registered handlers.
//
// Delivery is synchronous and in subscription order: the limiter runs on the
// caller's execution context and publishes before returning, so handlers must
// be fast and must not call back into the publishing limiter.
type Broker struct {
	mu     sync.RWMutex
	closed bool
	subs   map[string]func(Event) // subID -> handler
	order  []string               // subscription order for deterministic delivery
}

// NewBroker creates a new event broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]func(Event)),
	}
}

// Subscribe registers a handler for all subsequent events.
// Returns a unique subscription ID for Unsubscribe. Nil handlers are ignored
// and yield an empty ID.
func (b *Broker) Subscribe(handler func(Event)) string {
	if handler == nil {
		log.Warn().Msg("ignoring nil handler passed to subscribe")
		return ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		log.Warn().Msg("subscribe on closed broker ignored")
		return ""
	}

	id := uuid.NewString()
	b.subs[id] = handler
	b.order = append(b.order, id)
	log.Debug().Str("subscription_id", id).Msg("limit event handler subscribed")
	return id
}

// Unsubscribe removes the subscription with the given ID.
// Unknown IDs are a no-op.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	log.Debug().Str("subscription_id", id).Msg("limit event handler unsubscribed")
}

// Publish delivers the event to every subscriber. The broker assigns the
// event ID and timestamp when the publisher left them empty. Publishing on a
// closed broker is a no-op.
func (b *Broker) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	log.Debug().Str("event_id", e.ID).Str("kind", string(e.Kind)).Str("key", e.Key).Str("policy", e.Policy).Msg("publishing limit event")
	for _, h := range handlers {
		h(e)
	}
}

// Close drops all subscriptions and rejects further publishes and subscribes.
// Safe to call multiple times.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.subs = make(map[string]func(Event))
	b.order = nil
	log.Debug().Msg("limit event broker closed")
}
