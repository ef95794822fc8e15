// Package queue provides the FIFO message queue, the single-consumer
// processor that serializes delivery to the orchestrator, and the response
// router. The queue owns its messages; the processor and router only touch
// them through the queue's operations.
package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a queued message's lifecycle state. Transitions are monotonic
// except the requeue edge processing → pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// terminal reports whether a status admits no further transitions.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Source identifies where a message came from.
type Source string

const (
	SourceWebChat     Source = "web_chat"
	SourceSystemEvent Source = "system_event"
	SourceSlack       Source = "slack"
	SourceWhatsApp    Source = "whatsapp"
	SourceDiscord     Source = "discord"
)

// Message is a queued message bound for the orchestrator.
type Message struct {
	ID             string
	Content        string
	ConversationID string
	Source         Source
	Metadata       SourceMetadata
	EnqueuedAt     time.Time
	Status         Status
	RetryCount     int
	Response       string
	Error          string
	CompletedAt    time.Time
}

// EventType identifies queue events.
type EventType string

const (
	EventEnqueued          EventType = "enqueued"
	EventProcessingStarted EventType = "processing_started"
	EventCompleted         EventType = "completed"
	EventFailed            EventType = "failed"
	EventCancelled         EventType = "cancelled"
	EventStatusUpdate      EventType = "status_update"
)

// Event is a queue state change. Message is a copy; subscribers cannot
// mutate queue internals through it.
type Event struct {
	Type    EventType
	Message Message
}

// Queue operation errors.
var (
	ErrQueueFull         = errors.New("queue full")
	ErrNotFound          = errors.New("message not found")
	ErrAlreadyProcessing = errors.New("message already processing")
	ErrNotProcessing     = errors.New("message not processing")
)

// Stats is a point-in-time queue summary.
type Stats struct {
	Pending        int
	Processing     bool
	TotalProcessed int
	TotalFailed    int
}

// Queue is a bounded in-process FIFO with history and typed events.
type Queue struct {
	mu         sync.Mutex
	maxPending int
	maxHistory int

	pending   []*Message // head at index 0
	byID      map[string]*Message
	history   []string // terminal message IDs, oldest first
	currentID string

	totalProcessed int
	totalFailed    int

	subMu       sync.RWMutex
	subscribers map[int]chan Event
	nextSub     int
}

// New creates a queue with the given pending and history bounds.
func New(maxPending, maxHistory int) *Queue {
	return &Queue{
		maxPending:  maxPending,
		maxHistory:  maxHistory,
		byID:        make(map[string]*Message),
		subscribers: make(map[int]chan Event),
	}
}

// Enqueue adds a message and returns its assigned id. Fails with
// ErrQueueFull when the pending bound is reached.
func (q *Queue) Enqueue(content, conversationID string, source Source, meta SourceMetadata) (string, error) {
	q.mu.Lock()
	if len(q.pending) >= q.maxPending {
		q.mu.Unlock()
		return "", ErrQueueFull
	}

	msg := &Message{
		ID:             uuid.NewString(),
		Content:        content,
		ConversationID: conversationID,
		Source:         source,
		Metadata:       meta,
		EnqueuedAt:     time.Now(),
		Status:         StatusPending,
	}
	q.pending = append(q.pending, msg)
	q.byID[msg.ID] = msg
	event := Event{Type: EventEnqueued, Message: *msg}
	q.mu.Unlock()

	q.publish(event)
	return msg.ID, nil
}

// Peek returns a copy of the oldest pending message, if any.
func (q *Queue) Peek() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Message{}, false
	}
	return *q.pending[0], true
}

// Get returns a copy of a message by id, including terminal ones still in
// history.
func (q *Queue) Get(id string) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg, ok := q.byID[id]
	if !ok {
		return Message{}, false
	}
	return *msg, true
}

// StartProcessing marks a pending message as processing and records it as
// the current message.
func (q *Queue) StartProcessing(id string) error {
	q.mu.Lock()
	msg, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}
	if q.currentID != "" || msg.Status == StatusProcessing {
		q.mu.Unlock()
		return ErrAlreadyProcessing
	}
	if msg.Status != StatusPending {
		q.mu.Unlock()
		return ErrNotFound
	}

	msg.Status = StatusProcessing
	q.currentID = id
	q.removePending(id)
	event := Event{Type: EventProcessingStarted, Message: *msg}
	q.mu.Unlock()

	q.publish(event)
	return nil
}

// Complete marks the message completed with an optional response reference
// and appends it to history.
func (q *Queue) Complete(id, response string) error {
	return q.finish(id, StatusCompleted, response, "")
}

// Fail marks the message failed and appends it to history.
func (q *Queue) Fail(id, errText string) error {
	return q.finish(id, StatusFailed, "", errText)
}

// Requeue returns a processing message to the head of the pending queue
// with an incremented retry count, preserving its order relative to later
// arrivals.
func (q *Queue) Requeue(id string) error {
	q.mu.Lock()
	msg, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}
	if msg.Status != StatusProcessing {
		q.mu.Unlock()
		return ErrNotProcessing
	}

	msg.Status = StatusPending
	msg.RetryCount++
	q.pending = append([]*Message{msg}, q.pending...)
	if q.currentID == id {
		q.currentID = ""
	}
	event := Event{Type: EventStatusUpdate, Message: *msg}
	q.mu.Unlock()

	q.publish(event)
	return nil
}

// Cancel moves any non-terminal message to cancelled.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	msg, ok := q.byID[id]
	if !ok || msg.Status.terminal() {
		q.mu.Unlock()
		return ErrNotFound
	}

	msg.Status = StatusCancelled
	msg.CompletedAt = time.Now()
	q.removePending(id)
	if q.currentID == id {
		q.currentID = ""
	}
	q.appendHistory(id)
	event := Event{Type: EventCancelled, Message: *msg}
	q.mu.Unlock()

	q.publish(event)
	return nil
}

// CurrentMessageID returns the id of the in-flight message, if any.
func (q *Queue) CurrentMessageID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentID
}

// PendingCount returns the number of pending messages.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stats returns a point-in-time summary.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:        len(q.pending),
		Processing:     q.currentID != "",
		TotalProcessed: q.totalProcessed,
		TotalFailed:    q.totalFailed,
	}
}

// History returns copies of terminal messages, oldest first.
func (q *Queue) History() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, 0, len(q.history))
	for _, id := range q.history {
		if msg, ok := q.byID[id]; ok {
			out = append(out, *msg)
		}
	}
	return out
}

// Subscribe returns a channel of queue events and an unsubscribe function.
func (q *Queue) Subscribe() (<-chan Event, func()) {
	q.subMu.Lock()
	defer q.subMu.Unlock()

	q.nextSub++
	id := q.nextSub
	ch := make(chan Event, 64)
	q.subscribers[id] = ch

	return ch, func() {
		q.subMu.Lock()
		defer q.subMu.Unlock()
		if ch, ok := q.subscribers[id]; ok {
			close(ch)
			delete(q.subscribers, id)
		}
	}
}

// finish moves a message to a terminal status.
func (q *Queue) finish(id string, status Status, response, errText string) error {
	q.mu.Lock()
	msg, ok := q.byID[id]
	if !ok || msg.Status.terminal() {
		q.mu.Unlock()
		return ErrNotFound
	}

	msg.Status = status
	msg.Response = response
	msg.Error = errText
	msg.CompletedAt = time.Now()
	q.removePending(id)
	if q.currentID == id {
		q.currentID = ""
	}
	q.appendHistory(id)

	eventType := EventCompleted
	if status == StatusFailed {
		eventType = EventFailed
		q.totalFailed++
	} else {
		q.totalProcessed++
	}
	event := Event{Type: eventType, Message: *msg}
	q.mu.Unlock()

	q.publish(event)
	return nil
}

// removePending drops a message from the pending slice. Caller holds q.mu.
func (q *Queue) removePending(id string) {
	for i, msg := range q.pending {
		if msg.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// appendHistory records a terminal message, truncating to the history
// bound. Truncated messages are forgotten entirely. Caller holds q.mu.
func (q *Queue) appendHistory(id string) {
	q.history = append(q.history, id)
	for len(q.history) > q.maxHistory {
		oldest := q.history[0]
		q.history = q.history[1:]
		delete(q.byID, oldest)
	}
}

// publish fans an event out to subscribers without blocking; full
// subscriber channels drop the event.
func (q *Queue) publish(event Event) {
	q.subMu.RLock()
	defer q.subMu.RUnlock()
	for _, ch := range q.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
