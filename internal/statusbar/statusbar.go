// Package statusbar consumes the status-bar WebSocket feed (spec.md §6)
// that streams tmux pane session state, and keeps a project-indexed
// snapshot for panesurface.Surface and panewatch.Watcher to consult.
package statusbar

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/clawgate/clawgate/internal/clawtypes"
)

type wireTarget struct {
	Session string `json:"session"`
	Window  string `json:"window"`
	Pane    string `json:"pane"`
}

type wireSession struct {
	SessionID     string     `json:"session_id"`
	Project       string     `json:"project"`
	SessionType   string     `json:"session_type"`
	Status        string     `json:"status"`
	WaitingReason string     `json:"waiting_reason"`
	Attached      bool       `json:"attached"`
	Tmux          wireTarget `json:"tmux"`
}

func (w wireSession) toPaneSession() clawtypes.PaneSession {
	return clawtypes.PaneSession{
		Project:       w.Project,
		SessionType:   clawtypes.SessionType(w.SessionType),
		Status:        clawtypes.PaneStatus(w.Status),
		WaitingReason: w.WaitingReason,
		Attached:      w.Attached,
		Tmux:          clawtypes.PaneTarget{Session: w.Tmux.Session, Window: w.Tmux.Window, Pane: w.Tmux.Pane},
	}
}

type wireFrame struct {
	Type      string        `json:"type"`
	Sessions  []wireSession `json:"sessions"`
	Session   wireSession   `json:"session"`
	SessionID string        `json:"session_id"`
}

// Transition is one observed session state change, passed on to
// panewatch.Watcher.OnTransition by the caller.
type Transition struct {
	Session      clawtypes.PaneSession
	PrevStatus   clawtypes.PaneStatus
}

// Index is the project-indexed session map fed by the status-bar feed.
// It implements panesurface.SessionIndex.
type Index struct {
	mu      sync.RWMutex
	byID    map[string]clawtypes.PaneSession
	idByKey map[string]string
}

func NewIndex() *Index {
	return &Index{
		byID:    make(map[string]clawtypes.PaneSession),
		idByKey: make(map[string]string),
	}
}

func indexKey(sessionType clawtypes.SessionType, project string) string {
	return clawtypes.SessionModeMapKey(sessionType, project)
}

// Lookup satisfies panesurface.SessionIndex.
func (idx *Index) Lookup(sessionType clawtypes.SessionType, project string) (clawtypes.PaneSession, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	id, ok := idx.idByKey[indexKey(sessionType, project)]
	if !ok {
		return clawtypes.PaneSession{}, false
	}
	session, ok := idx.byID[id]
	return session, ok
}

// Snapshot returns every currently-tracked session.
func (idx *Index) Snapshot() []clawtypes.PaneSession {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]clawtypes.PaneSession, 0, len(idx.byID))
	for _, s := range idx.byID {
		out = append(out, s)
	}
	return out
}

// Apply ingests one status-bar frame, updating the index and returning
// every status change of an already-indexed session for the caller to forward to
// panewatch.Watcher.OnTransition.
func (idx *Index) Apply(raw []byte) ([]Transition, error) {
	var frame wireFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("statusbar: unparseable frame: %w", err)
	}

	switch frame.Type {
	case "sessions.list":
		return idx.applyList(frame.Sessions), nil
	case "session.added", "session.updated":
		return idx.applyUpsert(frame.Session), nil
	case "session.removed":
		idx.applyRemove(frame.SessionID)
		return nil, nil
	default:
		return nil, fmt.Errorf("statusbar: unknown frame type %q", frame.Type)
	}
}

func (idx *Index) applyList(sessions []wireSession) []Transition {
	var out []Transition
	for _, w := range sessions {
		out = append(out, idx.applyUpsert(w)...)
	}
	return out
}

func (idx *Index) applyUpsert(w wireSession) []Transition {
	if w.SessionID == "" {
		return nil
	}
	next := w.toPaneSession()

	idx.mu.Lock()
	prev, existed := idx.byID[w.SessionID]
	idx.byID[w.SessionID] = next
	idx.idByKey[indexKey(next.SessionType, next.Project)] = w.SessionID
	idx.mu.Unlock()

	if !existed || prev.Status == next.Status {
		return nil
	}
	return []Transition{{Session: next, PrevStatus: prev.Status}}
}

func (idx *Index) applyRemove(sessionID string) {
	if sessionID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	session, ok := idx.byID[sessionID]
	if !ok {
		return
	}
	delete(idx.byID, sessionID)
	key := indexKey(session.SessionType, session.Project)
	if idx.idByKey[key] == sessionID {
		delete(idx.idByKey, key)
	}
}
