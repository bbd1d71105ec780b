package inbound

import (
	"strings"
	"sync"
	"time"
)

// RecentSendTracker remembers text this node itself sent recently, so the
// same text echoed back through an adapter's inbound channel can be
// recognized and suppressed rather than re-surfaced as a new inbound
// message. One tracker instance is owned per adapter.
type RecentSendTracker struct {
	window time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

const defaultRecentSendWindow = 20 * time.Second

// EchoWindow is the lookback window InboundDetector uses to classify an
// inbound candidate as a likely echo of this node's own recent send.
const EchoWindow = 8 * time.Second

// NewRecentSendTracker builds a tracker with the given suppression window,
// defaulting to 20s (matching InboundDetector's dedup window) when window
// is non-positive.
func NewRecentSendTracker(window time.Duration) *RecentSendTracker {
	if window <= 0 {
		window = defaultRecentSendWindow
	}
	return &RecentSendTracker{window: window, sent: make(map[string]time.Time)}
}

// Record notes that text was just sent by this node at now.
func (t *RecentSendTracker) Record(now time.Time, text string) {
	key := fingerprint(text)
	if key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[key] = now
	t.evictLocked(now)
}

// IsEcho reports whether text matches a send recorded within the window
// of now, and consumes the match so a second identical inbound frame is
// not also suppressed.
func (t *RecentSendTracker) IsEcho(now time.Time, text string) bool {
	key := fingerprint(text)
	if key == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sentAt, ok := t.sent[key]
	if !ok {
		return false
	}
	if now.Sub(sentAt) > t.window {
		delete(t.sent, key)
		return false
	}
	delete(t.sent, key)
	return true
}

// IsEchoAny reports whether any text was sent within the window of now,
// regardless of its content. Used in fusion mode, where the target
// window's title may not uniquely identify the chat, so a precise text
// match is too strict a condition for echo suppression.
func (t *RecentSendTracker) IsEchoAny(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(now)
	return len(t.sent) > 0
}

func (t *RecentSendTracker) evictLocked(now time.Time) {
	for k, at := range t.sent {
		if now.Sub(at) > t.window {
			delete(t.sent, k)
		}
	}
}

func fingerprint(text string) string {
	return strings.TrimSpace(text)
}
