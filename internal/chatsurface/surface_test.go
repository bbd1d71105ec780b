package chatsurface

import (
	"errors"
	"testing"
	"time"

	"github.com/clawgate/clawgate/internal/clawerrors"
)

type fakeHost struct {
	trusted       bool
	running       bool
	pid           int
	launchErr     error
	launchMakesUp bool
	focusErr      error
	window        WindowHandle
	scanErr       error
	nodes         []Node
	setValueErr   error
	pressErr      error
	postKeyErr    error

	rescanSucceedsOnAttempt int
	scanCalls               int
}

func (f *fakeHost) IsTrusted() bool { return f.trusted }

func (f *fakeHost) IsRunning(bundleID string) (int, bool) {
	if f.running {
		return f.pid, true
	}
	return 0, false
}

func (f *fakeHost) Launch(bundleID string) error {
	if f.launchErr != nil {
		return f.launchErr
	}
	if f.launchMakesUp {
		f.running = true
	}
	return nil
}

func (f *fakeHost) Activate(pid int) error { return nil }

func (f *fakeHost) FocusedWindow(pid int) (WindowHandle, bool, error) {
	if f.focusErr != nil {
		return WindowHandle{}, false, f.focusErr
	}
	return f.window, true, nil
}

func (f *fakeHost) ScanTree(win WindowHandle, maxDepth, maxNodes int) ([]Node, error) {
	f.scanCalls++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if f.rescanSucceedsOnAttempt > 0 && f.scanCalls < f.rescanSucceedsOnAttempt {
		return []Node{{Role: "search_field", Settable: map[string]bool{"value": true}}}, nil
	}
	return f.nodes, nil
}

func (f *fakeHost) SetValue(n Node, text string) error { return f.setValueErr }
func (f *fakeHost) PressAction(n Node, action string) error { return f.pressErr }
func (f *fakeHost) PostKey(pid int, keyCode int) error { return f.postKeyErr }

func defaultNodes() []Node {
	return []Node{
		{Role: "search_field", Settable: map[string]bool{"value": true}},
		{Role: "message_input", Settable: map[string]bool{"value": true}},
		{Role: "send_button", Actions: map[string]bool{"AXPress": true}},
	}
}

func newTestSurface(host Host) *Surface {
	s := NewSurface(host, "com.example.chat",
		Selector{Role: "search_field"},
		Selector{Role: "message_input"},
		Selector{Role: "send_button"},
	)
	s.sleep = func(time.Duration) {}
	return s
}

func codeOf(err error) string {
	var ce *clawerrors.Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func TestSendHappyPathPressesSendButton(t *testing.T) {
	host := &fakeHost{trusted: true, running: true, pid: 42, window: WindowHandle{Width: 800, Height: 600}, nodes: defaultNodes()}
	s := newTestSurface(host)

	result, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MessageID == "" || result.SentAt.IsZero() {
		t.Fatalf("expected populated result, got %+v", result)
	}
}

func TestSendFailsWithoutAccessibilityTrust(t *testing.T) {
	host := &fakeHost{trusted: false}
	s := newTestSurface(host)

	_, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello"})
	if codeOf(err) != clawerrors.CodeAXPermissionMissing {
		t.Fatalf("expected ax_permission_missing, got %v", err)
	}
}

func TestSendFailsWhenAppNeverStarts(t *testing.T) {
	host := &fakeHost{trusted: true, running: false}
	s := newTestSurface(host)

	_, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello"})
	if codeOf(err) != clawerrors.CodeLineNotRunning {
		t.Fatalf("expected line_not_running, got %v", err)
	}
}

func TestSendLaunchesWhenNotRunning(t *testing.T) {
	host := &fakeHost{trusted: true, running: false, launchMakesUp: true, pid: 7, window: WindowHandle{Width: 800, Height: 600}, nodes: defaultNodes()}
	s := newTestSurface(host)

	_, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendFailsWhenWindowFrameEmpty(t *testing.T) {
	host := &fakeHost{trusted: true, running: true, pid: 1, window: WindowHandle{}}
	s := newTestSurface(host)

	_, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello"})
	if codeOf(err) != clawerrors.CodeWindowFrameMissing {
		t.Fatalf("expected window_frame_missing, got %v", err)
	}
}

func TestSendTimesOutWaitingForMessageInput(t *testing.T) {
	host := &fakeHost{
		trusted: true, running: true, pid: 1,
		window:                  WindowHandle{Width: 800, Height: 600},
		nodes:                   []Node{{Role: "search_field", Settable: map[string]bool{"value": true}}},
		rescanSucceedsOnAttempt: 99,
	}
	s := newTestSurface(host)

	_, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello"})
	if codeOf(err) != clawerrors.CodeRescanTimeout {
		t.Fatalf("expected rescan_timeout, got %v", err)
	}
}

func TestSendFallsBackToEnterWhenSendButtonMissing(t *testing.T) {
	host := &fakeHost{
		trusted: true, running: true, pid: 1,
		window: WindowHandle{Width: 800, Height: 600},
		nodes: []Node{
			{Role: "search_field", Settable: map[string]bool{"value": true}},
			{Role: "message_input", Settable: map[string]bool{"value": true}},
		},
	}
	s := newTestSurface(host)

	result, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello", EnterToSend: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MessageID == "" {
		t.Fatal("expected a message id from the enter-key fallback path")
	}
}

func TestSendFailsWhenSendButtonMissingAndEnterNotAllowed(t *testing.T) {
	host := &fakeHost{
		trusted: true, running: true, pid: 1,
		window: WindowHandle{Width: 800, Height: 600},
		nodes: []Node{
			{Role: "search_field", Settable: map[string]bool{"value": true}},
			{Role: "message_input", Settable: map[string]bool{"value": true}},
		},
	}
	s := newTestSurface(host)

	_, err := s.Send(SendRequest{ConversationHint: "demo", Text: "hello", EnterToSend: false})
	if codeOf(err) != clawerrors.CodeSendActionFailed {
		t.Fatalf("expected send_action_failed, got %v", err)
	}
}
