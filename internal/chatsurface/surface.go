package chatsurface

import (
	"strconv"
	"strings"
	"time"

	"github.com/clawgate/clawgate/internal/clawerrors"
)

const (
	retryAttempts     = 2
	retryDelay        = 120 * time.Millisecond
	launchWait        = 500 * time.Millisecond
	rescanAttempts    = 4
	rescanDelay       = 500 * time.Millisecond
	treeMaxDepth      = 8
	treeMaxNodes      = 500
)

// Step is one entry in a Send call's step log, recorded regardless of
// whether the step ultimately succeeded.
type Step struct {
	Name    string `json:"name"`
	Attempt int    `json:"attempt"`
	Err     string `json:"err,omitempty"`
}

// SendRequest is the inbound payload for Surface.Send.
type SendRequest struct {
	ConversationHint string
	Text             string
	EnterToSend      bool
}

// SendResult carries the generated message id, timestamp, and step log.
type SendResult struct {
	MessageID string
	SentAt    time.Time
	Steps     []Step
}

// Surface is the ChatSurface adapter: it drives Host through the
// resolve -> act -> re-resolve send-message procedure under a shared
// serial worker (the caller is responsible for serializing calls).
type Surface struct {
	host     Host
	bundleID string

	searchSelector     Selector
	messageSelector    Selector
	sendButtonSelector Selector

	sleep func(time.Duration)
}

func NewSurface(host Host, bundleID string, searchSelector, messageSelector, sendButtonSelector Selector) *Surface {
	return &Surface{
		host:               host,
		bundleID:           bundleID,
		searchSelector:     searchSelector,
		messageSelector:    messageSelector,
		sendButtonSelector: sendButtonSelector,
		sleep:              time.Sleep,
	}
}

// Send executes the full resolve -> act -> re-resolve procedure and
// returns a step-tagged error on the first unrecoverable step.
func (s *Surface) Send(req SendRequest) (SendResult, error) {
	var steps []Step

	if !s.host.IsTrusted() {
		steps = append(steps, Step{Name: "permission_check", Err: clawerrors.CodeAXPermissionMissing})
		return SendResult{Steps: steps}, clawerrors.New(clawerrors.CodeAXPermissionMissing, "accessibility trust not granted").WithStep("permission_check")
	}
	steps = append(steps, Step{Name: "permission_check"})

	pid, err := s.ensureRunning(&steps)
	if err != nil {
		return SendResult{Steps: steps}, err
	}

	win, err := s.activateAndFocus(pid, &steps)
	if err != nil {
		return SendResult{Steps: steps}, err
	}

	nodes, err := s.scanTree(win, &steps)
	if err != nil {
		return SendResult{Steps: steps}, err
	}

	searchField, ok := Resolve(nodes, s.searchSelector)
	if !ok {
		steps = append(steps, Step{Name: "resolve_search_field", Err: clawerrors.CodeSearchFieldNotFound})
		return SendResult{Steps: steps}, clawerrors.New(clawerrors.CodeSearchFieldNotFound, "no search field matched the selector").WithStep("resolve_search_field")
	}
	steps = append(steps, Step{Name: "resolve_search_field"})

	if err := s.withRetry("set_conversation_hint", &steps, func() error {
		return s.host.SetValue(searchField, req.ConversationHint)
	}); err != nil {
		return SendResult{Steps: steps}, clawerrors.New(clawerrors.CodeSearchInputFailed, err.Error()).WithStep("set_conversation_hint")
	}
	if err := s.host.PostKey(pid, KeyCodeEnter); err != nil {
		steps = append(steps, Step{Name: "search_enter", Err: err.Error()})
		return SendResult{Steps: steps}, clawerrors.New(clawerrors.CodeSearchInputFailed, err.Error()).WithStep("search_enter")
	}
	steps = append(steps, Step{Name: "search_enter"})

	var messageInput Node
	found := false
	for attempt := 1; attempt <= rescanAttempts; attempt++ {
		nodes, err = s.host.ScanTree(win, treeMaxDepth, treeMaxNodes)
		if err != nil {
			steps = append(steps, Step{Name: "rescan_for_message_input", Attempt: attempt, Err: err.Error()})
			continue
		}
		if messageInput, found = Resolve(nodes, s.messageSelector); found {
			break
		}
		steps = append(steps, Step{Name: "rescan_for_message_input", Attempt: attempt, Err: "not_found"})
		if attempt < rescanAttempts {
			s.sleep(rescanDelay)
		}
	}
	if !found {
		return SendResult{Steps: steps}, clawerrors.Retriable(clawerrors.CodeRescanTimeout, "message input did not appear after "+strconv.Itoa(rescanAttempts)+" rescans").WithStep("rescan_for_message_input")
	}
	steps = append(steps, Step{Name: "resolve_message_input"})

	if err := s.withRetry("set_message_text", &steps, func() error {
		return s.host.SetValue(messageInput, req.Text)
	}); err != nil {
		return SendResult{Steps: steps}, clawerrors.New(clawerrors.CodeMessageSetFailed, err.Error()).WithStep("set_message_text")
	}

	sendButton, ok := Resolve(nodes, s.sendButtonSelector)
	if ok {
		if err := s.withRetry("press_send_button", &steps, func() error {
			return s.host.PressAction(sendButton, "AXPress")
		}); err == nil {
			return SendResult{MessageID: newMessageID(), SentAt: time.Now().UTC(), Steps: steps}, nil
		}
		steps = append(steps, Step{Name: "press_send_button", Err: "press_failed"})
	} else {
		steps = append(steps, Step{Name: "resolve_send_button", Err: "not_found"})
	}

	if !req.EnterToSend {
		return SendResult{Steps: steps}, clawerrors.Retriable(clawerrors.CodeSendActionFailed, "send button unavailable and enter_to_send is false").WithStep("press_send_button")
	}
	if err := s.host.PostKey(pid, KeyCodeEnter); err != nil {
		steps = append(steps, Step{Name: "send_enter", Err: err.Error()})
		return SendResult{Steps: steps}, clawerrors.Retriable(clawerrors.CodeSendActionFailed, err.Error()).WithStep("send_enter")
	}
	steps = append(steps, Step{Name: "send_enter"})

	return SendResult{MessageID: newMessageID(), SentAt: time.Now().UTC(), Steps: steps}, nil
}

func (s *Surface) ensureRunning(steps *[]Step) (int, error) {
	if pid, ok := s.host.IsRunning(s.bundleID); ok {
		*steps = append(*steps, Step{Name: "ensure_running"})
		return pid, nil
	}
	if err := s.host.Launch(s.bundleID); err != nil {
		*steps = append(*steps, Step{Name: "ensure_running", Err: err.Error()})
		return 0, clawerrors.Retriable(clawerrors.CodeLineNotRunning, err.Error()).WithStep("ensure_running")
	}
	s.sleep(launchWait)
	pid, ok := s.host.IsRunning(s.bundleID)
	if !ok {
		*steps = append(*steps, Step{Name: "ensure_running", Err: "still_not_running"})
		return 0, clawerrors.Retriable(clawerrors.CodeLineNotRunning, "target application did not start").WithStep("ensure_running")
	}
	*steps = append(*steps, Step{Name: "ensure_running"})
	return pid, nil
}

func (s *Surface) activateAndFocus(pid int, steps *[]Step) (WindowHandle, error) {
	if err := s.host.Activate(pid); err != nil {
		*steps = append(*steps, Step{Name: "activate", Err: err.Error()})
		return WindowHandle{}, clawerrors.Retriable(clawerrors.CodeLineWindowMissing, err.Error()).WithStep("activate")
	}
	win, ok, err := s.host.FocusedWindow(pid)
	if err != nil || !ok {
		msg := "no window found"
		if err != nil {
			msg = err.Error()
		}
		*steps = append(*steps, Step{Name: "activate", Err: msg})
		return WindowHandle{}, clawerrors.Retriable(clawerrors.CodeLineWindowMissing, msg).WithStep("activate")
	}
	*steps = append(*steps, Step{Name: "activate"})
	return win, nil
}

func (s *Surface) scanTree(win WindowHandle, steps *[]Step) ([]Node, error) {
	if win.Width == 0 || win.Height == 0 {
		*steps = append(*steps, Step{Name: "read_window_frame", Err: "empty_frame"})
		return nil, clawerrors.Retriable(clawerrors.CodeWindowFrameMissing, "window frame is empty").WithStep("read_window_frame")
	}
	*steps = append(*steps, Step{Name: "read_window_frame"})

	nodes, err := s.host.ScanTree(win, treeMaxDepth, treeMaxNodes)
	if err != nil {
		*steps = append(*steps, Step{Name: "scan_tree", Err: err.Error()})
		return nil, clawerrors.Retriable(clawerrors.CodeWindowFrameMissing, err.Error()).WithStep("scan_tree")
	}
	*steps = append(*steps, Step{Name: "scan_tree"})
	return nodes, nil
}

// withRetry wraps fn with a 2-attempt retry at ~120ms initial delay,
// recording every attempt (successful or not) in steps.
func (s *Surface) withRetry(name string, steps *[]Step, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			*steps = append(*steps, Step{Name: name, Attempt: attempt})
			return nil
		}
		*steps = append(*steps, Step{Name: name, Attempt: attempt, Err: lastErr.Error()})
		if attempt < retryAttempts {
			s.sleep(retryDelay)
		}
	}
	return lastErr
}

// Context is the ChatSurface readiness snapshot for GET /v1/context.
type Context struct {
	Running     bool
	Trusted     bool
	WindowTitle string
}

// Message is one line of transcript text, synthesized from a tree scan
// (the chat application exposes no stable per-message id).
type Message struct {
	ID   string
	Text string
}

// Conversation is one entry resolved from the conversation list region.
type Conversation struct {
	Hint  string
	Title string
}

// GetContext reports whether the target application is running, whether
// accessibility trust is granted, and the title of its focused window.
func (s *Surface) GetContext() (Context, error) {
	trusted := s.host.IsTrusted()
	if !trusted {
		return Context{Trusted: false}, nil
	}
	pid, running := s.host.IsRunning(s.bundleID)
	if !running {
		return Context{Trusted: true}, nil
	}
	win, ok, err := s.host.FocusedWindow(pid)
	if err != nil {
		return Context{}, err
	}
	if !ok {
		return Context{Running: true, Trusted: true}, nil
	}
	return Context{Running: true, Trusted: true, WindowTitle: win.Title}, nil
}

// GetMessages resolves the transcript region against transcriptSelector
// and splits its text into non-empty lines, treating each as one visible
// message (the same line-set merge the legacy OCR path used; see
// spec.md §9's OCR attribution open question). limit <= 0 means no cap.
func (s *Surface) GetMessages(transcriptSelector Selector, limit int) ([]Message, error) {
	nodes, ok, err := s.scanFocusedTree()
	if err != nil || !ok {
		return nil, err
	}
	node, found := Resolve(nodes, transcriptSelector)
	if !found {
		return nil, nil
	}
	lines := nonEmptyLines(node.Text)
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	out := make([]Message, 0, len(lines))
	for i, line := range lines {
		out = append(out, Message{ID: "msg_" + strconv.Itoa(i), Text: line})
	}
	return out, nil
}

// GetConversations resolves the conversation-list region against
// listSelector and splits its text into non-empty lines, one per
// conversation entry.
func (s *Surface) GetConversations(listSelector Selector, limit int) ([]Conversation, error) {
	nodes, ok, err := s.scanFocusedTree()
	if err != nil || !ok {
		return nil, err
	}
	node, found := Resolve(nodes, listSelector)
	if !found {
		return nil, nil
	}
	lines := nonEmptyLines(node.Text)
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	out := make([]Conversation, 0, len(lines))
	for _, line := range lines {
		out = append(out, Conversation{Hint: line, Title: line})
	}
	return out, nil
}

// DumpTree returns every scanned node of the focused window, for the
// debug accessibility-tree dump endpoint. A nil, nil return means the
// target isn't running or has no focused window.
func (s *Surface) DumpTree() ([]Node, error) {
	nodes, ok, err := s.scanFocusedTree()
	if err != nil || !ok {
		return nil, err
	}
	return nodes, nil
}

// scanFocusedTree is the read-only half of Send's resolve procedure: it
// brings no window to the foreground and records no steps, since it
// backs debug/read endpoints rather than a user-facing send.
func (s *Surface) scanFocusedTree() ([]Node, bool, error) {
	pid, ok := s.host.IsRunning(s.bundleID)
	if !ok {
		return nil, false, nil
	}
	win, ok, err := s.host.FocusedWindow(pid)
	if err != nil || !ok {
		return nil, false, err
	}
	if win.Width == 0 || win.Height == 0 {
		return nil, false, nil
	}
	nodes, err := s.host.ScanTree(win, treeMaxDepth, treeMaxNodes)
	if err != nil {
		return nil, false, err
	}
	return nodes, true, nil
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var messageIDCounter uint64

// newMessageID generates a locally-unique id for a successful send.
// time.Now is unique enough for a single-process daemon; a counter
// suffix guards against same-nanosecond collisions under test clocks.
func newMessageID() string {
	messageIDCounter++
	return "msg_" + strconv.FormatInt(time.Now().UnixNano(), 36) + "_" + strconv.FormatUint(messageIDCounter, 36)
}
