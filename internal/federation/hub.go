// Package federation is FederationHub (spec L11): a single long-lived
// WebSocket endpoint that accepts at most one authenticated peer and
// correlates forwarded command/response frames by id.
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawgate/clawgate/internal/clawerrors"
	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/wsclient"
)

const commandTimeout = 15 * time.Second

type callResult struct {
	resp clawtypes.FederationResponse
	err  error
}

// Hub is the server side of the federation link: it accepts the single
// peer connection, dispatches outbound commands, and correlates inbound
// responses by id.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	peer    *wsclient.Client
	peerGen uint64
	pending map[string]chan callResult
}

func New(log *slog.Logger) *Hub {
	return &Hub{log: log, pending: make(map[string]chan callResult)}
}

// Connected reports whether a peer is currently attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peer != nil
}

// AttachPeer registers sock as the single connected peer, evicting and
// closing any prior peer first, and runs its read loop until it closes
// or ctx is cancelled. Every pending call in flight against a prior peer
// fails with peerDisconnected. Blocks until the read loop exits; callers
// run it in its own goroutine per connection.
func (h *Hub) AttachPeer(ctx context.Context, sock wsclient.Socket) error {
	client := wsclient.NewClient(sock)

	h.mu.Lock()
	if h.peer != nil {
		_ = h.peer.Close()
	}
	h.peer = client
	h.peerGen++
	generation := h.peerGen
	h.mu.Unlock()

	client.OnText(func(text string) { h.handleFrame(text) })

	err := client.Run(ctx)

	h.mu.Lock()
	if h.peerGen == generation {
		h.peer = nil
	}
	pending := h.pending
	h.pending = make(map[string]chan callResult)
	h.mu.Unlock()

	for _, ch := range pending {
		ch <- callResult{err: clawerrors.FromCode(clawerrors.CodePeerDisconnected, "federation peer disconnected")}
		close(ch)
	}
	return err
}

func (h *Hub) handleFrame(text string) {
	var resp clawtypes.FederationResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		h.log.Warn("federation: dropping unparseable frame", "error", err)
		return
	}

	h.mu.Lock()
	ch, ok := h.pending[resp.ID]
	if ok {
		delete(h.pending, resp.ID)
	}
	h.mu.Unlock()

	if !ok {
		h.log.Warn("federation: dropping response with unknown id", "id", resp.ID)
		return
	}
	ch <- callResult{resp: resp}
	close(ch)
}

// SendCommand transmits command to the single connected peer and waits
// for its correlated response. forProject is carried for future
// project-aware routing; a single peer serves every project today.
func (h *Hub) SendCommand(ctx context.Context, forProject string, cmd clawtypes.FederationCommand) (clawtypes.FederationResponse, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	h.mu.Lock()
	peer := h.peer
	if peer == nil {
		h.mu.Unlock()
		return clawtypes.FederationResponse{}, clawerrors.FromCode(clawerrors.CodeFederationUnavailable, "no federation peer connected")
	}
	resultCh := make(chan callResult, 1)
	h.pending[cmd.ID] = resultCh
	h.mu.Unlock()

	payload, err := json.Marshal(cmd)
	if err != nil {
		h.removePending(cmd.ID)
		return clawtypes.FederationResponse{}, fmt.Errorf("encode federation command: %w", err)
	}
	if err := peer.Send(ctx, string(payload)); err != nil {
		h.removePending(cmd.ID)
		return clawtypes.FederationResponse{}, clawerrors.FromCode(clawerrors.CodePeerDisconnected, err.Error())
	}

	select {
	case result := <-resultCh:
		if result.err != nil {
			return clawtypes.FederationResponse{}, result.err
		}
		return result.resp, nil
	case <-time.After(commandTimeout):
		h.removePending(cmd.ID)
		return clawtypes.FederationResponse{}, clawerrors.FromCode(clawerrors.CodeCommandTimeout, "federation command timed out after 15s")
	case <-ctx.Done():
		h.removePending(cmd.ID)
		return clawtypes.FederationResponse{}, ctx.Err()
	}
}

func (h *Hub) removePending(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, id)
}
