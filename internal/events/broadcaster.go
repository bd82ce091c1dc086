package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const subscriberBuffer = 100

// Filter selects the events a subscriber receives. A nil Filter accepts
// every event.
type Filter func(Event) bool

// ForPatient accepts only events about one patient. An empty id accepts all.
func ForPatient(patientID string) Filter {
	if patientID == "" {
		return nil
	}
	return func(e Event) bool {
		id, _ := e.Detail["patient_id"].(string)
		return id == patientID
	}
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Broadcaster is an in-process Bus that fans alert events out to live
// subscribers such as the alert stream endpoint. A subscriber whose buffer
// is full misses the event rather than stalling the engine.
type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	mu          sync.RWMutex
	now         func() time.Time
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
		now:         time.Now,
	}
}

func (b *Broadcaster) Subscribe(filter Filter) (uint64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish stamps the event and delivers it. It never fails.
func (b *Broadcaster) Publish(_ context.Context, source, eventType string, detail map[string]any) error {
	b.Broadcast(Event{
		Source:    source,
		Type:      eventType,
		Detail:    detail,
		Timestamp: b.now(),
	})
	return nil
}

func (b *Broadcaster) Broadcast(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subscribers {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
			slog.Debug("subscriber buffer full, event dropped", "subscriber", id, "event_type", e.Type, "alert_id", e.Detail["alert_id"])
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts deliveries skipped because a subscriber fell behind.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription; open streams see their channel close.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
