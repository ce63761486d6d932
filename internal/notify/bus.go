// Package notify fans out sync lifecycle events to subscribers such as the SSE endpoint.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names a sync lifecycle event.
type EventType string

const (
	EventOnline                EventType = "connectivity.online"
	EventOffline               EventType = "connectivity.offline"
	EventSyncStarted           EventType = "sync.started"
	EventSyncCompleted         EventType = "sync.completed"
	EventSyncHalted            EventType = "sync.halted"
	EventOperationQueued       EventType = "operation.queued"
	EventOperationSucceeded    EventType = "operation.succeeded"
	EventOperationRejected     EventType = "operation.rejected"
	EventOperationRetrying     EventType = "operation.retrying"
	EventOperationDeadLettered EventType = "operation.dead_lettered"
	EventOperationRetried      EventType = "operation.retried"
	EventOperationDiscarded    EventType = "operation.discarded"
	EventQueueCleared          EventType = "queue.cleared"
)

// Event is a single notification.
type Event struct {
	Type        EventType  `json:"type"`
	OperationID *uuid.UUID `json:"operation_id,omitempty"`
	Entity      string     `json:"entity,omitempty"`
	Pending     *int       `json:"pending,omitempty"`
	Message     string     `json:"message,omitempty"`
	At          time.Time  `json:"at"`
}

// Publisher publishes events.
type Publisher interface {
	Publish(event Event)
}

// Bus is an in-process Publisher with buffered subscriptions. A subscriber that falls behind
// misses events instead of blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	buffer      int
	closed      bool
	logger      *slog.Logger
}

// NewBus creates a Bus whose subscriptions buffer up to buffer events.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[int]chan Event),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe returns a channel of events and a function that ends the subscription and closes it.
// After Close the returned channel is already closed.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close ends every subscription. Events published afterwards are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers event to every subscriber without blocking.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				slog.Int("subscriber", id),
				slog.String("type", string(event.Type)),
			)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// OperationEvent builds an event about a single operation.
func OperationEvent(eventType EventType, id uuid.UUID, entity, message string) Event {
	return Event{Type: eventType, OperationID: &id, Entity: entity, Message: message}
}

// SyncEvent builds an event carrying the pending operation count.
func SyncEvent(eventType EventType, pending int) Event {
	return Event{Type: eventType, Pending: &pending}
}
