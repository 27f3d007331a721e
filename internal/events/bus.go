package events

import (
	"sync"
)

const defaultBufferSize = 100

// Bus fans events out to subscribers without ever blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]chan Event
	bufferSize  int
	closed      bool
}

// NewBus creates an event bus with the default per-subscriber buffer.
func NewBus() *Bus {
	return NewBusWithBuffer(defaultBufferSize)
}

// NewBusWithBuffer creates an event bus whose subscriber channels hold size events.
func NewBusWithBuffer(size int) *Bus {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[<-chan Event]chan Event),
		bufferSize:  size,
	}
}

// Subscribe returns a channel receiving every subsequent event.
// After Close it returns an already closed channel.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(sub)
	}
}

// Publish delivers event to every subscriber with buffer space.
// A full subscriber misses the event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel; later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for key, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, key)
	}
}
