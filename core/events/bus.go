package events

import (
	"log"
	"sync"
)

// Handler receives published events of the kind it subscribed to.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous typed publish/subscribe channel between the audio
// pipeline and its collaborators. Subscribers of a kind are invoked in
// registration order on the publishing goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind][]subscription
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]subscription)}
}

// Subscribe registers handler for events of the given kind and returns a
// function that removes the subscription. Unsubscribing more than once is a
// no-op.
func (b *Bus) Subscribe(kind Kind, handler Handler) func() {
	if b == nil || handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscriptions := b.handlers[kind]
		for i := range subscriptions {
			if subscriptions[i].id == id {
				b.handlers[kind] = append(subscriptions[:i:i], subscriptions[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers event to every subscriber of its kind, in registration
// order. A panicking subscriber is recovered and logged so that the remaining
// subscribers still receive the event.
func (b *Bus) Publish(event Event) {
	if b == nil || event == nil {
		return
	}

	b.mu.RLock()
	subscriptions := make([]subscription, len(b.handlers[event.Kind()]))
	copy(subscriptions, b.handlers[event.Kind()])
	b.mu.RUnlock()

	for _, sub := range subscriptions {
		dispatch(sub.handler, event)
	}
}

func dispatch(handler Handler, event Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("events: %s subscriber panicked: %v", event.Kind(), recovered)
		}
	}()

	handler(event)
}
