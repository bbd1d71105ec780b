package panesurface

import (
	"strconv"
	"strings"
	"time"

	"github.com/clawgate/clawgate/internal/clawerrors"
	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/inbound"
)

// SessionIndex resolves a (sessionType, project) pair to the live pane
// session, as maintained by PaneInboundWatcher from status-bar frames.
type SessionIndex interface {
	Lookup(sessionType clawtypes.SessionType, project string) (clawtypes.PaneSession, bool)
	Snapshot() []clawtypes.PaneSession
}

// ModeLookup returns the configured session mode for a (sessionType,
// project) pair, defaulting to ignore when unset.
type ModeLookup interface {
	SessionMode(sessionType clawtypes.SessionType, project string) clawtypes.SessionMode
}

// forbiddenKeys exit or suspend the child program and must never be sent
// on the caller's behalf.
var forbiddenKeys = map[string]struct{}{
	"C-c":  {},
	"C-d":  {},
	"C-z":  {},
	"C-\\": {},
}

// Surface is the PaneSurface adapter (spec L7): it gates sends by session
// mode, delivers literal text plus Enter, and answers "__cc_select:N"
// menu-selection requests by driving arrow keys.
type Surface struct {
	adapter  *Adapter
	sessions SessionIndex
	modes    ModeLookup
	recent   *inbound.RecentSendTracker
}

func NewSurface(adapter *Adapter, sessions SessionIndex, modes ModeLookup) *Surface {
	return &Surface{
		adapter:  adapter,
		sessions: sessions,
		modes:    modes,
		recent:   inbound.NewRecentSendTracker(0),
	}
}

const selectPrefix = "__cc_select:"

// Send resolves the session for (sessionType, project), enforces mode and
// busy gating, and delivers text. A text of "__cc_select:N" is routed to
// SelectMenuOption instead of being typed literally.
func (s *Surface) Send(sessionType clawtypes.SessionType, project, text string, enterToSend bool) error {
	session, ok := s.sessions.Lookup(sessionType, project)
	if !ok || !session.Attached {
		return clawerrors.New(clawerrors.CodeSessionNotFound, "no attached session for project")
	}

	mode := s.modes.SessionMode(sessionType, project)
	if mode == clawtypes.SessionModeObserve || mode == clawtypes.SessionModeIgnore {
		return clawerrors.New(clawerrors.CodeSessionReadOnly, "session mode does not allow sends")
	}
	if session.Status == clawtypes.PaneStatusRunning {
		return clawerrors.Retriable(clawerrors.CodeSessionTypingBusy, "session is currently running")
	}

	target := session.Tmux.Target()

	if n, isSelect := parseSelectCommand(text); isSelect {
		return s.SelectMenuOption(target, n)
	}

	if err := s.adapter.SendLiteral(target, text); err != nil {
		return clawerrors.New(clawerrors.CodeTmuxCommandFailed, err.Error())
	}
	if enterToSend {
		if err := s.adapter.SendKey(target, "Enter"); err != nil {
			return clawerrors.New(clawerrors.CodeTmuxCommandFailed, err.Error())
		}
	}
	s.recent.Record(time.Now(), text)
	return nil
}

func parseSelectCommand(text string) (int, bool) {
	if !strings.HasPrefix(text, selectPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(text, selectPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SelectMenuOption captures the pane, locates the currently highlighted
// selector option, and sends just enough Up/Down presses plus Enter to
// land on option n (0-indexed, top to bottom).
func (s *Surface) SelectMenuOption(target string, n int) error {
	captured, err := s.adapter.CapturePane(target)
	if err != nil {
		return clawerrors.New(clawerrors.CodeTmuxCommandFailed, err.Error())
	}
	lines := strings.Split(captured, "\n")
	options, selected, ok := ScanSelectorLines(lines)
	if !ok {
		return clawerrors.New(clawerrors.CodeTmuxCommandFailed, "no selector menu detected in pane")
	}
	if n >= len(options) {
		return clawerrors.New(clawerrors.CodeTmuxCommandFailed, "select index out of range")
	}

	key := "Down"
	steps := n - selected
	if steps < 0 {
		key = "Up"
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		if err := s.SendKey(target, key); err != nil {
			return err
		}
	}
	return s.SendKey(target, "Enter")
}

// SendKey sends a single non-literal tmux key name after checking it
// against the forbidden-key blacklist. Arrow keys and Enter are always
// allowed; C-c/C-d/C-z/C-\ are refused.
func (s *Surface) SendKey(target, key string) error {
	if _, forbidden := forbiddenKeys[key]; forbidden {
		return clawerrors.New(clawerrors.CodeForbiddenKey, "key "+key+" is not permitted")
	}
	if err := s.adapter.SendKey(target, key); err != nil {
		return clawerrors.New(clawerrors.CodeTmuxCommandFailed, err.Error())
	}
	return nil
}

// SendLiteral types text into target with no mode gating, for internal
// auto-answers (e.g. the permission-prompt "y") that PaneInboundWatcher
// issues on the session's behalf rather than on a caller's request.
func (s *Surface) SendLiteral(target, text string) error {
	if err := s.adapter.SendLiteral(target, text); err != nil {
		return clawerrors.New(clawerrors.CodeTmuxCommandFailed, err.Error())
	}
	return nil
}

// defaultMessageTailLines is GetMessages' capture depth when the caller
// supplies no limit.
const defaultMessageTailLines = 50

// Context is the PaneSurface readiness snapshot for GET /v1/context.
type Context struct {
	Attached bool
	Status   clawtypes.PaneStatus
	Mode     clawtypes.SessionMode
}

// GetContext reports the attach state, status, and configured mode for
// (sessionType, project), without requiring an attached session.
func (s *Surface) GetContext(sessionType clawtypes.SessionType, project string) (Context, error) {
	mode := s.modes.SessionMode(sessionType, project)
	session, ok := s.sessions.Lookup(sessionType, project)
	if !ok {
		return Context{Mode: mode}, nil
	}
	return Context{Attached: session.Attached, Status: session.Status, Mode: mode}, nil
}

// GetMessages captures the pane's tail and splits it into non-empty
// lines, one per visible message. limit <= 0 uses defaultMessageTailLines.
func (s *Surface) GetMessages(sessionType clawtypes.SessionType, project string, limit int) ([]string, error) {
	session, ok := s.sessions.Lookup(sessionType, project)
	if !ok || !session.Attached {
		return nil, clawerrors.New(clawerrors.CodeSessionNotFound, "no attached session for project")
	}
	n := limit
	if n <= 0 {
		n = defaultMessageTailLines
	}
	captured, err := s.adapter.CaptureTail(session.Tmux.Target(), n)
	if err != nil {
		return nil, clawerrors.New(clawerrors.CodeTmuxCommandFailed, err.Error())
	}
	var out []string
	for _, line := range strings.Split(captured, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// GetConversations returns every tracked pane session, one per known
// (sessionType, project) conversation, capped at limit when positive.
func (s *Surface) GetConversations(limit int) []clawtypes.PaneSession {
	all := s.sessions.Snapshot()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
