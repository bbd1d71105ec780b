package inbound

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/clawgate/clawgate/internal/clawtypes"
)

// SignalSource is one of InboundDetector's collection mechanisms
// (structural AX diff, pixel-hash diff, OS notification banner). Collect
// returns ok=false when the source has nothing to report this tick (for
// example, a pixel-hash source on its very first tick, which only
// records a baseline). Reset clears any stored baseline, called after
// two consecutive soft-timeout ticks to resynchronize.
type SignalSource interface {
	Name() string
	Collect(now time.Time) (Signal, bool, error)
	Reset()
}

// EventEmitter is the subset of eventbus.Bus the detector publishes to.
type EventEmitter interface {
	Append(typ clawtypes.EventType, adapter string, payload map[string]string) clawtypes.Event
}

const (
	softTimeout       = 30 * time.Second
	timeoutsForResync = 2
)

// Detector is InboundDetector: a lock-serialized poll loop that gates on
// application foreground presence, fans out to its signal sources, fuses
// (or, in legacy mode, picks the first non-empty) their output, sanitizes
// and dedups the resulting text, and emits at most one event per tick.
type Detector struct {
	sources []SignalSource
	bus     EventEmitter
	adapter string

	mode            func() clawtypes.DetectionMode
	threshold       func() int
	windowTitle     func() string
	isForeground    func() bool
	conversationHint func() string

	recent *RecentSendTracker
	dedup  *Deduper

	ticking              int32
	skippedTicks         int64
	consecutiveTimeouts  int32
	mu                   sync.Mutex
}

// Config bundles the live-config accessors Detector consults at the
// start of every tick (ConfigStore is read-through; the detector never
// caches these values across ticks).
type Config struct {
	Mode             func() clawtypes.DetectionMode
	FusionThreshold  func() int
	WindowTitle      func() string
	IsForeground     func() bool
	ConversationHint func() string
}

func New(sources []SignalSource, bus EventEmitter, adapter string, cfg Config) *Detector {
	return &Detector{
		sources:          sources,
		bus:              bus,
		adapter:          adapter,
		mode:             cfg.Mode,
		threshold:        cfg.FusionThreshold,
		windowTitle:      cfg.WindowTitle,
		isForeground:     cfg.IsForeground,
		conversationHint: cfg.ConversationHint,
		recent:           NewRecentSendTracker(EchoWindow),
		dedup:            NewDeduper(),
	}
}

// RecordSend notes that this node itself sent text at now, for echo
// suppression on the next inbound tick.
func (d *Detector) RecordSend(now time.Time, text string) {
	d.recent.Record(now, text)
}

// Tick runs one poll cycle. If a previous tick is still in flight, the
// new tick is skipped and counted rather than queued. A tick exceeding
// the soft timeout is abandoned: its goroutine is allowed to run to
// completion, but its result is discarded and not awaited.
func (d *Detector) Tick(now time.Time) {
	if !d.isForeground() {
		return
	}
	if !atomic.CompareAndSwapInt32(&d.ticking, 0, 1) {
		atomic.AddInt64(&d.skippedTicks, 1)
		return
	}

	var abandoned int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer atomic.StoreInt32(&d.ticking, 0)
		d.runTick(now, &abandoned)
	}()

	select {
	case <-done:
		atomic.StoreInt32(&d.consecutiveTimeouts, 0)
	case <-time.After(softTimeout):
		atomic.StoreInt32(&abandoned, 1)
		if atomic.AddInt32(&d.consecutiveTimeouts, 1) >= timeoutsForResync {
			d.resetSources()
			atomic.StoreInt32(&d.consecutiveTimeouts, 0)
		}
	}
}

// SkippedTicks reports how many ticks were skipped because a previous
// tick was still running.
func (d *Detector) SkippedTicks() int64 {
	return atomic.LoadInt64(&d.skippedTicks)
}

func (d *Detector) resetSources() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sources {
		s.Reset()
	}
}

func (d *Detector) runTick(now time.Time, abandoned *int32) {
	var signals []Signal
	for _, s := range d.sources {
		sig, ok, err := s.Collect(now)
		if err != nil || !ok {
			continue
		}
		signals = append(signals, sig)
	}
	if len(signals) == 0 {
		return
	}

	mode := d.mode()
	var result FuseResult
	if mode == clawtypes.DetectionModeLegacy {
		result = FuseLegacy(signals)
	} else {
		result = Fuse(signals, d.threshold())
	}
	if !result.ShouldEmit {
		return
	}

	conversation := result.ConversationHint
	if conversation == "" {
		conversation = d.conversationHint()
	}

	text := Sanitize(result.Text, d.windowTitle())
	if text == "" {
		return
	}
	if d.dedup.ShouldDrop(now, conversation, text) {
		return
	}

	eventType := clawtypes.EventInboundMessage
	isEcho := false
	if mode == clawtypes.DetectionModeLegacy {
		isEcho = d.recent.IsEcho(now, text)
	} else {
		isEcho = d.recent.IsEchoAny(now)
	}
	if isEcho {
		eventType = clawtypes.EventEchoMessage
	}

	if atomic.LoadInt32(abandoned) != 0 {
		return
	}
	d.bus.Append(eventType, d.adapter, map[string]string{
		"conversation": conversation,
		"text":         text,
		"confidence":   result.Confidence,
		"source":       result.Source,
	})
}
