package chatsurface

import (
	"time"

	"github.com/clawgate/clawgate/internal/inbound"
	"github.com/clawgate/clawgate/internal/inbound/textdiff"
)

const structuralScore = 60

// StructuralSource is InboundDetector's structural AX-diff signal: it
// scans the focused window for the transcript region, diffs its text
// against the previous tick's snapshot, and reports the delta as an
// inbound.Signal. It implements inbound.SignalSource.
type StructuralSource struct {
	host               Host
	bundleID           string
	transcriptSelector Selector
	conversationHint   func() string

	prev string
}

func NewStructuralSource(host Host, bundleID string, transcriptSelector Selector, conversationHint func() string) *StructuralSource {
	return &StructuralSource{host: host, bundleID: bundleID, transcriptSelector: transcriptSelector, conversationHint: conversationHint}
}

func (s *StructuralSource) Name() string { return "structural" }

func (s *StructuralSource) Reset() { s.prev = "" }

func (s *StructuralSource) Collect(_ time.Time) (inbound.Signal, bool, error) {
	pid, ok := s.host.IsRunning(s.bundleID)
	if !ok {
		return inbound.Signal{}, false, nil
	}
	win, ok, err := s.host.FocusedWindow(pid)
	if err != nil || !ok {
		return inbound.Signal{}, false, err
	}
	nodes, err := s.host.ScanTree(win, treeMaxDepth, treeMaxNodes)
	if err != nil {
		return inbound.Signal{}, false, err
	}
	node, ok := Resolve(nodes, s.transcriptSelector)
	if !ok {
		return inbound.Signal{}, false, nil
	}

	curr := node.Text
	prev := s.prev
	s.prev = curr
	if curr == "" || curr == prev {
		return inbound.Signal{}, false, nil
	}

	delta := textdiff.DecideDelta(prev, curr, true)
	if delta.Data == "" {
		return inbound.Signal{}, false, nil
	}

	return inbound.Signal{
		Name:             s.Name(),
		Text:             delta.Data,
		ConversationHint: s.conversationHint(),
		Score:            structuralScore,
	}, true, nil
}
