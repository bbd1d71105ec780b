package inbound

import (
	"strings"
	"sync"
	"time"
)

const dedupWindow = 20 * time.Second

// Deduper suppresses a repeat emission of the same (conversation, text)
// pair within a short window, fingerprinted as
// lowercased(conversation) + "|" + normalize(text).
type Deduper struct {
	mu          sync.Mutex
	lastFP      string
	lastAt      time.Time
}

func NewDeduper() *Deduper {
	return &Deduper{}
}

// ShouldDrop reports whether (conversation, text) at now duplicates the
// last emitted fingerprint within the dedup window, and records the
// fingerprint when it does not.
func (d *Deduper) ShouldDrop(now time.Time, conversation, text string) bool {
	fp := fingerprintFor(conversation, text)

	d.mu.Lock()
	defer d.mu.Unlock()
	if fp == d.lastFP && now.Sub(d.lastAt) <= dedupWindow {
		d.lastAt = now
		return true
	}
	d.lastFP = fp
	d.lastAt = now
	return false
}

func fingerprintFor(conversation, text string) string {
	return strings.ToLower(strings.TrimSpace(conversation)) + "|" + normalize(text)
}

func normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	return strings.Join(fields, " ")
}
