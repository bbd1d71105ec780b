// Package eventbus is the ordered, append-only event log every component
// publishes to and every SSE/federation consumer polls or subscribes to.
package eventbus

import (
	"sync"
	"time"

	"github.com/clawgate/clawgate/internal/clawtypes"
)

// DefaultCap is the ring buffer size floor (spec: "bounded, >= 1000").
const DefaultCap = 1000

// bootstrapWindow is how many trailing events poll() returns when the
// caller supplies no cursor.
const bootstrapWindow = 3

// SubscriptionHandle identifies a registered push subscriber for Unsubscribe.
type SubscriptionHandle uint64

// Bus is an append-only, bounded ring of clawtypes.Event, with a
// long-poll/SSE-style cursor read and a push-subscriber plane.
type Bus struct {
	cap int

	mu        sync.Mutex
	ring      []clawtypes.Event
	nextID    int64
	nextSubID SubscriptionHandle
	subs      map[SubscriptionHandle]func(clawtypes.Event)
}

// New returns a Bus with the given ring capacity, raised to DefaultCap if
// smaller.
func New(capacity int) *Bus {
	if capacity < DefaultCap {
		capacity = DefaultCap
	}
	return &Bus{
		cap:    capacity,
		nextID: 1,
		subs:   make(map[SubscriptionHandle]func(clawtypes.Event)),
	}
}

// Append assigns the next monotonic id, stamps observed_at, stores the
// event, and publishes to subscribers after the write lock is released.
func (b *Bus) Append(typ clawtypes.EventType, adapter string, payload map[string]string) clawtypes.Event {
	ev := clawtypes.Event{
		Type:       typ,
		Adapter:    adapter,
		ObservedAt: time.Now().UTC(),
		Payload:    payload,
	}

	b.mu.Lock()
	ev.ID = b.nextID
	b.nextID++
	b.ring = append(b.ring, ev)
	if len(b.ring) > b.cap {
		b.ring = b.ring[len(b.ring)-b.cap:]
	}
	callbacks := make([]func(clawtypes.Event), 0, len(b.subs))
	for _, cb := range b.subs {
		callbacks = append(callbacks, cb)
	}
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb(ev)
	}
	return ev
}

// Poll returns every event with id > since, or the last bootstrapWindow
// events when since is nil, plus the cursor to resume from.
func (b *Bus) Poll(since *int64) (events []clawtypes.Event, nextCursor int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if since == nil {
		start := len(b.ring) - bootstrapWindow
		if start < 0 {
			start = 0
		}
		events = append(events, b.ring[start:]...)
	} else {
		for _, ev := range b.ring {
			if ev.ID > *since {
				events = append(events, ev)
			}
		}
	}

	if len(events) > 0 {
		return events, events[len(events)-1].ID
	}
	if since != nil {
		return events, *since
	}
	return events, 0
}

// Subscribe registers a push callback invoked once per event appended
// after this call, in id order. The callback must not block or call back
// into the Bus.
func (b *Bus) Subscribe(cb func(clawtypes.Event)) SubscriptionHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	handle := b.nextSubID
	b.subs[handle] = cb
	return handle
}

func (b *Bus) Unsubscribe(handle SubscriptionHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, handle)
}
