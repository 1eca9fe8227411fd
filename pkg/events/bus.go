package events

import (
	"sync"

	"github.com/jscyril/golang_media_player/api"
)

// EventBus handles event distribution using channels
type EventBus struct {
	subscribers map[api.EventType][]chan api.PlayerEvent
	mu          sync.RWMutex
	closed      bool
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[api.EventType][]chan api.PlayerEvent),
	}
}

// Subscribe returns a channel for receiving events of the specified types
func (b *EventBus) Subscribe(eventTypes ...api.EventType) <-chan api.PlayerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan api.PlayerEvent, 16)
	if b.closed {
		close(ch)
		return ch
	}
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	}
	return ch
}

// SubscribeAll returns a channel for receiving all event types
func (b *EventBus) SubscribeAll() <-chan api.PlayerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan api.PlayerEvent, 64)
	if b.closed {
		close(ch)
		return ch
	}
	for _, eventType := range api.AllEventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	}
	return ch
}

// Publish broadcasts an event to all subscribers of that event type.
// It never blocks: subscribers that are not keeping up miss events.
func (b *EventBus) Publish(event api.PlayerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Unsubscribe removes a subscriber channel and closes it
func (b *EventBus) Unsubscribe(ch <-chan api.PlayerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var found chan api.PlayerEvent
	for eventType, subs := range b.subscribers {
		for i, sub := range subs {
			if sub == ch {
				found = sub
				b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
	if found != nil {
		close(found)
	}
}

// Close closes all subscriber channels
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	// A channel subscribed to several types must only be closed once
	closed := make(map[chan api.PlayerEvent]bool)
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			if !closed[ch] {
				close(ch)
				closed[ch] = true
			}
		}
	}
	b.subscribers = make(map[api.EventType][]chan api.PlayerEvent)
}
