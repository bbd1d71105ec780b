// Package adapters is the AdapterRegistry (spec L9): a name-keyed lookup
// of the two outbound adapters (chat, pane) with role-based gating so
// RequestDispatcher never invokes an adapter the node's federation role
// doesn't permit locally.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/clawgate/clawgate/internal/clawtypes"
)

// SendRequest is the adapter-agnostic outbound send payload.
type SendRequest struct {
	ConversationHint string
	Text             string
	EnterToSend      bool
	TraceID          string
}

// SendResult is returned by a successful adapter send.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Context is an adapter's readiness snapshot, returned by GetContext and
// surfaced verbatim by GET /v1/context.
type Context struct {
	Ready  bool           `json:"ready"`
	Detail map[string]any `json:"detail,omitempty"`
}

// MessagesRequest is the query for GetMessages.
type MessagesRequest struct {
	ConversationHint string
	Limit            int
}

// Message is one recent visible message as the adapter observes it.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ObservedAt time.Time `json:"observed_at"`
}

// ConversationsRequest is the query for GetConversations.
type ConversationsRequest struct {
	Limit int
}

// Conversation is one entry in an adapter's conversation list.
type Conversation struct {
	Hint  string `json:"hint"`
	Title string `json:"title"`
}

// Adapter is one outbound surface (chat or pane) registered under a
// stable name used by the send endpoint's {adapter: "..."} field. Beyond
// sendMessage, every adapter exposes the read-only capability set from
// spec.md §9: getContext, getMessages, getConversations.
type Adapter interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	GetContext(ctx context.Context) (Context, error)
	GetMessages(ctx context.Context, req MessagesRequest) ([]Message, error)
	GetConversations(ctx context.Context, req ConversationsRequest) ([]Conversation, error)
}

// RoleGate is implemented by adapters whose availability depends on the
// node's federation role (e.g. the pane adapter is local-only on a pure
// client node that owns no panes of its own).
type RoleGate interface {
	AllowedForRole(role clawtypes.NodeRole) bool
}

// Registry is a name -> Adapter lookup, ordered by registration.
type Registry struct {
	mu    sync.RWMutex
	byName map[string]Adapter
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Adapter{}}
}

func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return errors.New("adapter is nil")
	}
	name := strings.TrimSpace(a.Name())
	if name == "" {
		return errors.New("adapter name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.byName[name] = a
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) MustRegister(a Adapter) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Get returns the adapter by name with no role gating applied.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[strings.TrimSpace(name)]
	return a, ok
}

// GetForRole returns the adapter by name, but reports not-found if a
// RoleGate adapter refuses the given node role.
func (r *Registry) GetForRole(name string, role clawtypes.NodeRole) (Adapter, bool) {
	a, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	if gate, isGated := a.(RoleGate); isGated && !gate.AllowedForRole(role) {
		return nil, false
	}
	return a, true
}

// List returns every registered adapter in registration order.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
