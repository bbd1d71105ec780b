package inbound

import (
	"testing"
	"time"

	"github.com/clawgate/clawgate/internal/clawtypes"
)

type fakeSource struct {
	name    string
	sig     Signal
	ok      bool
	err     error
	resets  int
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Collect(now time.Time) (Signal, bool, error) {
	return f.sig, f.ok, f.err
}
func (f *fakeSource) Reset() { f.resets++ }

type fakeBus struct {
	events []clawtypes.Event
}

func (b *fakeBus) Append(typ clawtypes.EventType, adapter string, payload map[string]string) clawtypes.Event {
	ev := clawtypes.Event{Type: typ, Adapter: adapter, Payload: payload}
	b.events = append(b.events, ev)
	return ev
}

func fusionConfig(foreground bool) Config {
	return Config{
		Mode:             func() clawtypes.DetectionMode { return clawtypes.DetectionModeFusion },
		FusionThreshold:  func() int { return 60 },
		WindowTitle:      func() string { return "Chat" },
		IsForeground:     func() bool { return foreground },
		ConversationHint: func() string { return "default" },
	}
}

func TestTickSkipsWhenNotForeground(t *testing.T) {
	src := &fakeSource{name: "structural", sig: Signal{Text: "hi", Score: 90}, ok: true}
	bus := &fakeBus{}
	d := New([]SignalSource{src}, bus, "chat", fusionConfig(false))

	d.Tick(time.Now())
	if len(bus.events) != 0 {
		t.Fatalf("expected no events while not foreground, got %v", bus.events)
	}
}

func TestTickEmitsInboundMessageAboveThreshold(t *testing.T) {
	src := &fakeSource{name: "structural", sig: Signal{Text: "hello there", ConversationHint: "demo", Score: 90}, ok: true}
	bus := &fakeBus{}
	d := New([]SignalSource{src}, bus, "chat", fusionConfig(true))

	d.Tick(time.Now())
	if len(bus.events) != 1 || bus.events[0].Type != clawtypes.EventInboundMessage {
		t.Fatalf("expected one inbound_message event, got %v", bus.events)
	}
}

func TestTickClassifiesEchoWhenRecentlySent(t *testing.T) {
	src := &fakeSource{name: "structural", sig: Signal{Text: "hello there", Score: 90}, ok: true}
	bus := &fakeBus{}
	d := New([]SignalSource{src}, bus, "chat", fusionConfig(true))

	now := time.Now()
	d.RecordSend(now, "unrelated echo probe")
	d.Tick(now.Add(1 * time.Second))

	if len(bus.events) != 1 || bus.events[0].Type != clawtypes.EventEchoMessage {
		t.Fatalf("expected echo_message in fusion mode after any recent send, got %v", bus.events)
	}
}

func TestTickDropsWhenNoSignalsFire(t *testing.T) {
	src := &fakeSource{name: "structural", ok: false}
	bus := &fakeBus{}
	d := New([]SignalSource{src}, bus, "chat", fusionConfig(true))

	d.Tick(time.Now())
	if len(bus.events) != 0 {
		t.Fatalf("expected no events when no source fires, got %v", bus.events)
	}
}

func TestTickSanitizesAwayWindowTitleOnlyText(t *testing.T) {
	src := &fakeSource{name: "structural", sig: Signal{Text: "Chat", Score: 90}, ok: true}
	bus := &fakeBus{}
	d := New([]SignalSource{src}, bus, "chat", fusionConfig(true))

	d.Tick(time.Now())
	if len(bus.events) != 0 {
		t.Fatalf("expected sanitize to drop window-title-only text, got %v", bus.events)
	}
}

func TestTickSkipsOverlappingRun(t *testing.T) {
	blocking := make(chan struct{})
	src := &fakeSource{name: "structural", ok: false}
	_ = blocking
	bus := &fakeBus{}
	d := New([]SignalSource{src}, bus, "chat", fusionConfig(true))

	d.ticking = 1 // simulate a tick already in flight
	d.Tick(time.Now())
	if d.SkippedTicks() != 1 {
		t.Fatalf("expected the overlapping tick to be counted as skipped, got %d", d.SkippedTicks())
	}
}

func TestLegacyModeEmitsFirstNonEmptySignal(t *testing.T) {
	a := &fakeSource{name: "structural", ok: true, sig: Signal{Text: "", Score: 70}}
	b := &fakeSource{name: "pixel_hash", ok: true, sig: Signal{Text: "fallback text", Score: 35}}
	bus := &fakeBus{}
	cfg := fusionConfig(true)
	cfg.Mode = func() clawtypes.DetectionMode { return clawtypes.DetectionModeLegacy }
	d := New([]SignalSource{a, b}, bus, "chat", cfg)

	d.Tick(time.Now())
	if len(bus.events) != 1 || bus.events[0].Payload["text"] != "fallback text" {
		t.Fatalf("expected legacy mode to emit the fallback signal, got %v", bus.events)
	}
}
