package statusbar

import (
	"io"
	"log/slog"
	"testing"

	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/wsclient"
)

type fakeWatcher struct {
	transitions []clawtypes.PaneStatus
	sampled     int
}

func (w *fakeWatcher) OnTransition(_ string, _ clawtypes.PaneSession, prevStatus clawtypes.PaneStatus) error {
	w.transitions = append(w.transitions, prevStatus)
	return nil
}

func (w *fakeWatcher) SampleProgress(string, clawtypes.PaneSession) error {
	w.sampled++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientForwardsTransitionsToWatcher(t *testing.T) {
	sock := wsclient.NewFakeSocket()
	idx := NewIndex()
	watcher := &fakeWatcher{}
	NewClient(sock, idx, watcher, discardLogger())

	sock.EmitText(`{"type":"session.added","session":
		{"session_id":"s1","project":"demo","session_type":"claude_code","status":"running","attached":true}}`)
	sock.EmitText(`{"type":"session.updated","session":
		{"session_id":"s1","project":"demo","session_type":"claude_code","status":"idle","attached":true}}`)

	if len(watcher.transitions) != 1 {
		t.Fatalf("expected one transition forwarded, got %d", len(watcher.transitions))
	}
	if watcher.transitions[0] != clawtypes.PaneStatusRunning {
		t.Fatalf("expected prev status running, got %v", watcher.transitions[0])
	}
}

func TestClientDropsUnparseableFrameWithoutPanicking(t *testing.T) {
	sock := wsclient.NewFakeSocket()
	idx := NewIndex()
	watcher := &fakeWatcher{}
	NewClient(sock, idx, watcher, discardLogger())

	sock.EmitText(`not json`)

	if len(watcher.transitions) != 0 {
		t.Fatalf("expected no transitions from a garbage frame")
	}
}
