package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clawgate/clawgate/internal/adapters"
	"github.com/clawgate/clawgate/internal/clawerrors"
	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/opslog"
)

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, s.config.Current())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidJSON, "days must be a non-negative integer")
			return
		}
		days = v
	}

	all, err := s.stats.Totals("")
	if err != nil {
		respondError(w, http.StatusInternalServerError, clawerrors.CodeInternalError, err.Error())
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	counters := all[:0]
	for _, c := range all {
		if c.Day >= cutoff {
			counters = append(counters, c)
		}
	}
	respondOK(w, map[string]any{"days": days, "counters": counters})
}

func (s *Server) handleOpsLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	level := r.URL.Query().Get("level")
	trace := r.URL.Query().Get("trace_id")

	entries, err := s.ops.Recent(limit, level, trace)
	if err != nil {
		respondError(w, http.StatusInternalServerError, clawerrors.CodeInternalError, err.Error())
		return
	}
	respondOK(w, map[string]any{"entries": entries})
}

// resolveAdapter looks up name, gated by the node's current role, and
// writes adapter_not_found if it isn't available.
func (s *Server) resolveAdapter(w http.ResponseWriter, name string) (adapters.Adapter, bool) {
	a, ok := s.adapters.GetForRole(name, s.config.Current().NodeRole)
	if !ok {
		respondError(w, http.StatusBadRequest, clawerrors.CodeAdapterNotFound, "no such adapter: "+name)
		return nil, false
	}
	return a, true
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	a, ok := s.resolveAdapter(w, r.URL.Query().Get("adapter"))
	if !ok {
		return
	}
	ctx, err := a.GetContext(r.Context())
	if err != nil {
		writeAdapterError(w, err)
		return
	}
	respondOK(w, ctx)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	a, ok := s.resolveAdapter(w, r.URL.Query().Get("adapter"))
	if !ok {
		return
	}
	msgs, err := a.GetMessages(r.Context(), adapters.MessagesRequest{
		ConversationHint: r.URL.Query().Get("conversation"),
		Limit:            parseLimit(r, 50),
	})
	if err != nil {
		writeAdapterError(w, err)
		return
	}
	respondOK(w, map[string]any{"messages": msgs})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	a, ok := s.resolveAdapter(w, r.URL.Query().Get("adapter"))
	if !ok {
		return
	}
	convos, err := a.GetConversations(r.Context(), adapters.ConversationsRequest{Limit: parseLimit(r, 50)})
	if err != nil {
		writeAdapterError(w, err)
		return
	}
	respondOK(w, map[string]any{"conversations": convos})
}

// AXDumper is implemented by adapters that can produce a raw debug dump
// of whatever they drive (an accessibility tree, a captured pane). Not
// every adapters.Adapter needs to support it, so handleAXDump type-asserts
// against this rather than widening the core Adapter interface.
type AXDumper interface {
	AXDump(ctx context.Context, conversationHint string) (any, error)
}

func (s *Server) handleAXDump(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("adapter")
	a, ok := s.resolveAdapter(w, name)
	if !ok {
		return
	}
	dumper, ok := a.(AXDumper)
	if !ok {
		respondError(w, http.StatusBadRequest, clawerrors.CodeAxdumpFailed, "adapter does not support ax dump: "+name)
		return
	}
	dump, err := dumper.AXDump(r.Context(), r.URL.Query().Get("conversation"))
	if err != nil {
		writeAdapterError(w, err)
		return
	}
	respondOK(w, map[string]any{"adapter": name, "dump": dump})
}

func (s *Server) handleDoctor(w http.ResponseWriter, r *http.Request) {
	cfg := s.config.Current()
	report := map[string]any{
		"node_role":            cfg.NodeRole,
		"chat_enabled":         cfg.Chat.Enabled,
		"pane_enabled":         cfg.Pane.Enabled,
		"federation_connected": s.federator != nil && s.federator.Connected(),
	}
	for _, name := range []string{"chat", "tmux"} {
		a, ok := s.adapters.Get(name)
		if !ok {
			report[name] = map[string]any{"registered": false}
			continue
		}
		ctx, err := a.GetContext(r.Context())
		entry := map[string]any{"registered": true, "ready": ctx.Ready, "detail": ctx.Detail}
		if err != nil {
			entry["error"] = err.Error()
		}
		report[name] = entry
	}
	respondOK(w, report)
}

func validSessionType(t clawtypes.SessionType) bool {
	return t == clawtypes.SessionTypeClaudeCode || t == clawtypes.SessionTypeCodex
}

func validSessionMode(m clawtypes.SessionMode) bool {
	switch m {
	case clawtypes.SessionModeIgnore, clawtypes.SessionModeObserve, clawtypes.SessionModeAuto, clawtypes.SessionModeAutonomous:
		return true
	}
	return false
}

func (s *Server) handleTmuxSessionMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetSessionMode(w, r)
	case http.MethodPut:
		s.handleSetSessionMode(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, clawerrors.CodeMethodNotAllowed, "method not allowed for this path")
	}
}

func (s *Server) handleGetSessionMode(w http.ResponseWriter, r *http.Request) {
	sessionType := clawtypes.SessionType(r.URL.Query().Get("session_type"))
	project := r.URL.Query().Get("project")
	if !validSessionType(sessionType) {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidSessionType, "unknown session_type")
		return
	}
	if project == "" {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidProject, "project is required")
		return
	}
	cfg := s.config.Current()
	mode, ok := cfg.Pane.SessionModes[clawtypes.SessionModeMapKey(sessionType, project)]
	if !ok {
		mode = clawtypes.SessionModeIgnore
	}
	respondOK(w, map[string]any{"session_type": sessionType, "project": project, "mode": mode})
}

type sessionModeBody struct {
	SessionType string `json:"session_type"`
	Project     string `json:"project"`
	Mode        string `json:"mode"`
}

func (s *Server) handleSetSessionMode(w http.ResponseWriter, r *http.Request) {
	var body sessionModeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidJSON, "malformed session mode body")
		return
	}
	sessionType := clawtypes.SessionType(body.SessionType)
	if !validSessionType(sessionType) {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidSessionType, "unknown session_type")
		return
	}
	if body.Project == "" {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidProject, "project is required")
		return
	}
	mode := clawtypes.SessionMode(body.Mode)
	if !validSessionMode(mode) {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidMode, "unknown mode")
		return
	}

	cfg := s.config.Current()
	cfg.Pane.SessionModes[clawtypes.SessionModeMapKey(sessionType, body.Project)] = mode
	if err := s.config.Save(cfg); err != nil {
		respondError(w, http.StatusInternalServerError, clawerrors.CodeInternalError, err.Error())
		return
	}

	s.bus.Append(clawtypes.EventTmuxSessionModeUpdated, "tmux", map[string]string{
		"session_type": string(sessionType),
		"project":      body.Project,
		"mode":         string(mode),
	})
	respondOK(w, map[string]any{"session_type": sessionType, "project": body.Project, "mode": mode})
}

// projectsWithConfiguredModes extracts the distinct project names present
// in cfg's session-mode map, whose keys are "session_type/project".
func projectsWithConfiguredModes(cfg clawtypes.ConfigSnapshot) []string {
	seen := make(map[string]struct{})
	var out []string
	for key := range cfg.Pane.SessionModes {
		idx := strings.IndexByte(key, '/')
		if idx < 0 {
			continue
		}
		project := key[idx+1:]
		if _, ok := seen[project]; ok {
			continue
		}
		seen[project] = struct{}{}
		out = append(out, project)
	}
	return out
}

func (s *Server) handleAutonomousStatus(w http.ResponseWriter, r *http.Request) {
	if s.stall == nil {
		respondOK(w, map[string]any{"projects": []any{}})
		return
	}

	cfg := s.config.Current()
	hasTarget := false
	for _, mode := range cfg.Pane.SessionModes {
		if mode == clawtypes.SessionModeAuto || mode == clawtypes.SessionModeAutonomous {
			hasTarget = true
			break
		}
	}
	// Chat delivery runs locally on every role except a pure federation
	// client, which relies on its server peer to type the reply.
	isLineSendLocal := cfg.NodeRole != clawtypes.NodeRoleClient

	if project := r.URL.Query().Get("project"); project != "" {
		status, err := s.stall.Evaluate(project, time.Now().UTC(), hasTarget, isLineSendLocal, s.emitStall)
		if err != nil {
			respondError(w, http.StatusInternalServerError, clawerrors.CodeInternalError, err.Error())
			return
		}
		respondOK(w, status)
		return
	}

	projects := projectsWithConfiguredModes(cfg)
	statuses := make([]any, 0, len(projects))
	for _, project := range projects {
		status, err := s.stall.Evaluate(project, time.Now().UTC(), hasTarget, isLineSendLocal, s.emitStall)
		if err != nil {
			respondError(w, http.StatusInternalServerError, clawerrors.CodeInternalError, err.Error())
			return
		}
		statuses = append(statuses, status)
	}
	respondOK(w, map[string]any{"projects": statuses})
}

// emitStall records one autonomous.stalled ops entry, satisfying
// stall.EmitFunc.
func (s *Server) emitStall(project, traceID string) {
	if s.ops == nil {
		return
	}
	_ = s.ops.Append("info", "autonomous.stalled", "dispatcher", "stall_detector", opslog.Fields{
		"project": project, "trace_id": traceID, "status": "stalled",
	})
}

type debugInjectBody struct {
	Type    string            `json:"type"`
	Adapter string            `json:"adapter"`
	Payload map[string]string `json:"payload"`
}

func (s *Server) handleDebugInject(w http.ResponseWriter, r *http.Request) {
	var body debugInjectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidJSON, "malformed debug inject body")
		return
	}
	typ := clawtypes.EventType(body.Type)
	if _, known := clawtypes.KnownEventTypes[typ]; !known {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidJSON, "unknown event type: "+body.Type)
		return
	}
	ev := s.bus.Append(typ, body.Adapter, body.Payload)
	respondOK(w, ev)
}
