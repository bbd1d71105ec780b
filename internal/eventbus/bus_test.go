package eventbus

import (
	"sync"
	"testing"

	"github.com/clawgate/clawgate/internal/clawtypes"
)

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	b := New(0)
	first := b.Append(clawtypes.EventInboundMessage, "chat", nil)
	second := b.Append(clawtypes.EventInboundMessage, "chat", nil)
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("unexpected ids: %d, %d", first.ID, second.ID)
	}
}

func TestAppendTrimsRingAtCapacity(t *testing.T) {
	b := New(0)
	b.cap = 5
	for i := 0; i < 20; i++ {
		b.Append(clawtypes.EventTmuxProgress, "pane", nil)
	}
	if len(b.ring) != 5 {
		t.Fatalf("expected ring trimmed to capacity 5, got %d", len(b.ring))
	}
	if b.ring[0].ID != 16 {
		t.Fatalf("expected oldest surviving id 16, got %d", b.ring[0].ID)
	}
}

func TestNewRaisesBelowFloorCapacity(t *testing.T) {
	b := New(10)
	if b.cap != DefaultCap {
		t.Fatalf("expected capacity floor %d, got %d", DefaultCap, b.cap)
	}
}

func TestPollWithoutCursorReturnsBootstrapWindow(t *testing.T) {
	b := New(0)
	for i := 0; i < 10; i++ {
		b.Append(clawtypes.EventTmuxProgress, "pane", nil)
	}
	events, cursor := b.Poll(nil)
	if len(events) != bootstrapWindow {
		t.Fatalf("expected %d bootstrap events, got %d", bootstrapWindow, len(events))
	}
	if cursor != 10 {
		t.Fatalf("expected cursor 10, got %d", cursor)
	}
}

func TestPollSinceReturnsOnlyNewerEvents(t *testing.T) {
	b := New(0)
	for i := 0; i < 5; i++ {
		b.Append(clawtypes.EventTmuxProgress, "pane", nil)
	}
	since := int64(3)
	events, cursor := b.Poll(&since)
	if len(events) != 2 {
		t.Fatalf("expected 2 events after id 3, got %d", len(events))
	}
	if cursor != 5 {
		t.Fatalf("expected cursor 5, got %d", cursor)
	}
}

func TestPollSinceNoNewEventsReturnsCursorUnchanged(t *testing.T) {
	b := New(0)
	b.Append(clawtypes.EventTmuxProgress, "pane", nil)
	since := int64(1)
	events, cursor := b.Poll(&since)
	if len(events) != 0 || cursor != 1 {
		t.Fatalf("expected no events and cursor unchanged, got %d events cursor=%d", len(events), cursor)
	}
}

func TestSubscribeReceivesEventsAppendedAfterSubscribe(t *testing.T) {
	b := New(0)
	b.Append(clawtypes.EventTmuxProgress, "pane", nil) // before subscribe

	var mu sync.Mutex
	var received []clawtypes.Event
	b.Subscribe(func(ev clawtypes.Event) {
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
	})

	b.Append(clawtypes.EventTmuxCompletion, "pane", nil)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Type != clawtypes.EventTmuxCompletion {
		t.Fatalf("unexpected subscriber deliveries: %+v", received)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(0)
	calls := 0
	handle := b.Subscribe(func(clawtypes.Event) { calls++ })
	b.Unsubscribe(handle)
	b.Append(clawtypes.EventTmuxProgress, "pane", nil)
	if calls != 0 {
		t.Fatalf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestSubscriberCallbackRunsOutsideAppendLock(t *testing.T) {
	b := New(0)
	done := make(chan struct{})
	b.Subscribe(func(clawtypes.Event) {
		// Reentrant call into the bus must not deadlock: the lock must
		// already be released by the time this callback runs.
		b.Poll(nil)
		close(done)
	})
	b.Append(clawtypes.EventTmuxProgress, "pane", nil)
	<-done
}
