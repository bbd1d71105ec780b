package runtime

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clawgate/clawgate/internal/adapters"
	"github.com/clawgate/clawgate/internal/chatsurface"
	"github.com/clawgate/clawgate/internal/clawerrors"
	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/inbound"
	"github.com/clawgate/clawgate/internal/panesurface"
)

// chatAdapter bridges chatsurface.Surface to adapters.Adapter, registered
// under the name "chat". detector is set once by runtime wiring so a
// successful send can be recorded for echo suppression on the next
// inbound poll tick. transcript and conversationList back the read-only
// getMessages/getConversations capability; transcript is the same region
// selector StructuralSource uses for its own diffing.
type chatAdapter struct {
	surface          *chatsurface.Surface
	detector         *inbound.Detector
	transcript       chatsurface.Selector
	conversationList chatsurface.Selector
}

func newChatAdapter(surface *chatsurface.Surface, transcript, conversationList chatsurface.Selector) *chatAdapter {
	return &chatAdapter{surface: surface, transcript: transcript, conversationList: conversationList}
}

func (a *chatAdapter) Name() string { return "chat" }

func (a *chatAdapter) Send(_ context.Context, req adapters.SendRequest) (adapters.SendResult, error) {
	result, err := a.surface.Send(chatsurface.SendRequest{
		ConversationHint: req.ConversationHint,
		Text:             req.Text,
		EnterToSend:      req.EnterToSend,
	})
	if err != nil {
		return adapters.SendResult{}, err
	}
	if a.detector != nil {
		a.detector.RecordSend(result.SentAt, req.Text)
	}
	return adapters.SendResult{MessageID: result.MessageID, SentAt: result.SentAt}, nil
}

func (a *chatAdapter) GetContext(_ context.Context) (adapters.Context, error) {
	ctx, err := a.surface.GetContext()
	if err != nil {
		return adapters.Context{}, err
	}
	return adapters.Context{
		Ready: ctx.Running && ctx.Trusted,
		Detail: map[string]any{
			"running":      ctx.Running,
			"trusted":      ctx.Trusted,
			"window_title": ctx.WindowTitle,
		},
	}, nil
}

func (a *chatAdapter) GetMessages(_ context.Context, req adapters.MessagesRequest) ([]adapters.Message, error) {
	msgs, err := a.surface.GetMessages(a.transcript, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]adapters.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, adapters.Message{ID: m.ID, Text: m.Text})
	}
	return out, nil
}

func (a *chatAdapter) GetConversations(_ context.Context, req adapters.ConversationsRequest) ([]adapters.Conversation, error) {
	convos, err := a.surface.GetConversations(a.conversationList, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]adapters.Conversation, 0, len(convos))
	for _, c := range convos {
		out = append(out, adapters.Conversation{Hint: c.Hint, Title: c.Title})
	}
	return out, nil
}

// AXDump returns the raw accessibility tree for the focused window,
// backing GET /v1/axdump for the chat adapter.
func (a *chatAdapter) AXDump(_ context.Context, _ string) (any, error) {
	return a.surface.DumpTree()
}

// paneAdapter bridges panesurface.Surface to adapters.Adapter, registered
// under the name "tmux". The wire payload carries no session_type (spec:
// `{conversation_hint = project, text, enter_to_send}`), so it resolves
// the session by trying every known session type for the project until
// one is attached.
type paneAdapter struct {
	surface  *panesurface.Surface
	sessions panesurface.SessionIndex
}

func newPaneAdapter(surface *panesurface.Surface, sessions panesurface.SessionIndex) *paneAdapter {
	return &paneAdapter{surface: surface, sessions: sessions}
}

func (a *paneAdapter) Name() string { return "tmux" }

var knownSessionTypes = []clawtypes.SessionType{clawtypes.SessionTypeClaudeCode, clawtypes.SessionTypeCodex}

func (a *paneAdapter) resolveSessionType(project string) (clawtypes.SessionType, bool) {
	for _, st := range knownSessionTypes {
		if _, ok := a.sessions.Lookup(st, project); ok {
			return st, true
		}
	}
	return "", false
}

func (a *paneAdapter) Send(_ context.Context, req adapters.SendRequest) (adapters.SendResult, error) {
	sessionType, ok := a.resolveSessionType(req.ConversationHint)
	if !ok {
		return adapters.SendResult{}, clawerrors.New(clawerrors.CodeSessionNotFound, "no attached session for project")
	}
	if err := a.surface.Send(sessionType, req.ConversationHint, req.Text, req.EnterToSend); err != nil {
		return adapters.SendResult{}, err
	}
	return adapters.SendResult{MessageID: "msg_" + uuid.NewString(), SentAt: time.Now().UTC()}, nil
}

func (a *paneAdapter) GetContext(_ context.Context) (adapters.Context, error) {
	sessionType, ok := a.resolveSessionType("")
	if !ok {
		return adapters.Context{Detail: map[string]any{"attached": false}}, nil
	}
	ctx, err := a.surface.GetContext(sessionType, "")
	if err != nil {
		return adapters.Context{}, err
	}
	return adapters.Context{
		Ready: ctx.Attached,
		Detail: map[string]any{
			"attached": ctx.Attached,
			"status":   string(ctx.Status),
			"mode":     string(ctx.Mode),
		},
	}, nil
}

func (a *paneAdapter) GetMessages(_ context.Context, req adapters.MessagesRequest) ([]adapters.Message, error) {
	sessionType, ok := a.resolveSessionType(req.ConversationHint)
	if !ok {
		return nil, clawerrors.New(clawerrors.CodeSessionNotFound, "no attached session for project")
	}
	lines, err := a.surface.GetMessages(sessionType, req.ConversationHint, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]adapters.Message, 0, len(lines))
	for i, line := range lines {
		out = append(out, adapters.Message{ID: "msg_" + strconv.Itoa(i), Text: line})
	}
	return out, nil
}

func (a *paneAdapter) GetConversations(_ context.Context, req adapters.ConversationsRequest) ([]adapters.Conversation, error) {
	sessions := a.surface.GetConversations(req.Limit)
	out := make([]adapters.Conversation, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, adapters.Conversation{Hint: s.Project, Title: s.Project + " (" + string(s.SessionType) + ")"})
	}
	return out, nil
}

// AXDump returns the raw pane capture for conversationHint's session,
// backing GET /v1/axdump for the tmux adapter.
func (a *paneAdapter) AXDump(_ context.Context, conversationHint string) (any, error) {
	sessionType, ok := a.resolveSessionType(conversationHint)
	if !ok {
		return nil, clawerrors.New(clawerrors.CodeSessionNotFound, "no attached session for project")
	}
	lines, err := a.surface.GetMessages(sessionType, conversationHint, 0)
	if err != nil {
		return nil, err
	}
	return map[string]any{"project": conversationHint, "lines": lines}, nil
}
