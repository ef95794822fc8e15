// Package eventbus provides the in-process pub/sub bus for chat message
// events. The queue processor subscribes here to correlate orchestrator
// responses with the messages it dispatched.
package eventbus

import (
	"sync"
	"time"
)

// ParticipantType identifies who produced a message event.
type ParticipantType string

const (
	ParticipantOrchestrator ParticipantType = "orchestrator"
	ParticipantAgent        ParticipantType = "agent"
	ParticipantUser         ParticipantType = "user"
	ParticipantSystem       ParticipantType = "system"
)

// Participant identifies a message sender.
type Participant struct {
	Type ParticipantType
	ID   string
}

// MessageEvent is a chat message flowing through the bus.
type MessageEvent struct {
	ConversationID string
	From           Participant
	Content        string
	Timestamp      time.Time
}

// subscriberBuffer sizes each subscriber's channel. Publish never blocks;
// a full channel drops the event for that subscriber only.
const subscriberBuffer = 100

// Bus is an in-process event bus for chat message events.
// Thread-safe for concurrent publish/subscribe operations.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan MessageEvent
	nextID      int
	closed      bool
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan MessageEvent)}
}

// Subscribe creates a new subscription and returns a channel for receiving
// events. The returned unsubscribe function must be called to clean up.
func (b *Bus) Subscribe() (events <-chan MessageEvent, unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan MessageEvent)
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	ch := make(chan MessageEvent, subscriberBuffer)
	b.subscribers[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subscribers[id]; ok {
			close(ch)
			delete(b.subscribers, id)
		}
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that subscriber
// so slow consumers cannot stall the publisher.
func (b *Bus) Publish(event MessageEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
