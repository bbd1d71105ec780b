package dispatcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/clawgate/clawgate/internal/adapters"
	"github.com/clawgate/clawgate/internal/clawerrors"
	"github.com/clawgate/clawgate/internal/clawtypes"
)

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	var since *int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidJSON, "since must be an integer cursor")
			return
		}
		since = &v
	}

	events, next := s.bus.Poll(since)
	respondOK(w, map[string]any{"events": events, "next_cursor": next})
}

// handleSSE streams the event bus as text/event-stream. On connect it
// replays every event after Last-Event-ID if present, else the bus's
// own last-three bootstrap, then forwards live events until the client
// disconnects.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, clawerrors.CodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var since *int64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			since = &v
		}
	}
	backlog, _ := s.bus.Poll(since)
	for _, ev := range backlog {
		writeSSEEvent(w, ev)
	}
	flusher.Flush()

	stream := make(chan clawtypes.Event, 32)
	handle := s.bus.Subscribe(func(ev clawtypes.Event) {
		select {
		case stream <- ev:
		default:
			// Slow reader: drop rather than block the bus's append path.
		}
	})
	defer s.bus.Unsubscribe(handle)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-stream:
			writeSSEEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev clawtypes.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	var frame bytes.Buffer
	frame.WriteString("id: ")
	frame.WriteString(strconv.FormatInt(ev.ID, 10))
	frame.WriteString("\ndata: ")
	frame.Write(payload)
	frame.WriteString("\n\n")
	_, _ = w.Write(frame.Bytes())
}

type sendRequestBody struct {
	Adapter string `json:"adapter"`
	Action  string `json:"action"`
	Payload struct {
		ConversationHint string `json:"conversation_hint"`
		Text             string `json:"text"`
		EnterToSend      bool   `json:"enter_to_send"`
		TraceID          string `json:"trace_id"`
	} `json:"payload"`
}

// paneAdapterName is the registered AdapterRegistry name for the tmux
// pane surface; the only adapter eligible for federation preflight and
// fallback forwarding.
const paneAdapterName = "tmux"

// handleSend is the blocking-class send endpoint. It resolves the named
// adapter, attempts federation preflight forwarding when the node is a
// server-role holder of a pane target but the project session is not
// known locally to be in an autonomous mode, falls back to federation
// on a local session_not_found/tmux_target_missing failure, and
// otherwise invokes the adapter directly.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var body sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidJSON, "malformed send request body")
		return
	}
	if body.Action != "send_message" {
		respondError(w, http.StatusBadRequest, clawerrors.CodeUnsupportedAction, "unsupported action: "+body.Action)
		return
	}
	if body.Payload.Text == "" {
		respondError(w, http.StatusBadRequest, clawerrors.CodeInvalidText, "text must not be empty")
		return
	}

	if s.shouldPreflightToFederation(body) {
		if s.forwardSend(w, r, body, forwardFallthroughOnFailure) {
			return
		}
		// Forward failed: fall through to local execution.
	}

	adapter, ok := s.adapters.GetForRole(body.Adapter, s.config.Current().NodeRole)
	if !ok {
		respondError(w, http.StatusBadRequest, clawerrors.CodeAdapterNotFound, "no such adapter: "+body.Adapter)
		return
	}

	req := adapters.SendRequest{
		ConversationHint: body.Payload.ConversationHint,
		Text:             body.Payload.Text,
		EnterToSend:      body.Payload.EnterToSend,
		TraceID:          body.Payload.TraceID,
	}

	result, err := adapter.Send(r.Context(), req)
	if err != nil && s.federator != nil && s.federator.Connected() && isFallbackEligible(err) {
		if s.forwardSend(w, r, body, forwardUnavailableOnFailure) {
			return
		}
	}
	if err != nil {
		writeAdapterError(w, err)
		return
	}

	if s.stats != nil {
		_ = s.stats.Increment("messages_sent", body.Adapter, result.SentAt)
	}
	s.bus.Append(clawtypes.EventOutboundMessage, body.Adapter, map[string]string{
		"conversation": body.Payload.ConversationHint,
		"message_id":   result.MessageID,
	})
	respondOK(w, map[string]any{
		"message_id": result.MessageID,
		"sent_at":    result.SentAt.UTC().Format(time.RFC3339),
	})
}

// shouldPreflightToFederation reports whether the pane send should be
// forwarded to the peer before any local adapter invocation: the node
// must hold the server role, the target must be the pane adapter, a
// peer must be connected, and no session mode known locally for the
// project may be auto/autonomous.
func (s *Server) shouldPreflightToFederation(body sendRequestBody) bool {
	if body.Adapter != paneAdapterName || s.federator == nil || !s.federator.Connected() {
		return false
	}
	if s.config.Current().NodeRole != clawtypes.NodeRoleServer {
		return false
	}
	if s.localModeOwnsProject == nil {
		return false
	}
	return !s.localModeOwnsProject(body.Payload.ConversationHint)
}

func isFallbackEligible(err error) bool {
	var ce *clawerrors.Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == clawerrors.CodeSessionNotFound || ce.Code == clawerrors.CodeTmuxTargetMissing
}

// forwardFailureMode governs how forwardSend reacts when the federation
// call itself errors out (as opposed to the peer answering with an
// error status, which is always relayed verbatim).
type forwardFailureMode int

const (
	// forwardFallthroughOnFailure leaves the response unwritten so the
	// caller proceeds to local execution — the preflight path.
	forwardFallthroughOnFailure forwardFailureMode = iota
	// forwardUnavailableOnFailure writes 503 federation_unavailable —
	// the fallback-after-local-failure path.
	forwardUnavailableOnFailure
)

// forwardSend relays body to the federation peer. If the peer answers,
// its status code and body are written verbatim and its X-Trace-ID
// header is echoed; this always counts as handled. If the call itself
// fails (no peer, timeout, disconnect), behavior is governed by mode.
// Returns true if a response was written.
func (s *Server) forwardSend(w http.ResponseWriter, r *http.Request, body sendRequestBody, mode forwardFailureMode) bool {
	payload, err := json.Marshal(body)
	if err != nil {
		return false
	}
	bodyStr := string(payload)
	resp, err := s.federator.SendCommand(r.Context(), body.Payload.ConversationHint, clawtypes.FederationCommand{
		Method: http.MethodPost,
		Path:   "/v1/send",
		Body:   &bodyStr,
	})
	if err != nil {
		if mode == forwardUnavailableOnFailure {
			respondClawError(w, http.StatusServiceUnavailable, clawerrors.FromCode(clawerrors.CodeFederationUnavailable, err.Error()))
			return true
		}
		return false
	}
	if traceID := resp.Headers["X-Trace-ID"]; traceID != "" {
		w.Header().Set("X-Trace-ID", traceID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
	return true
}

func writeAdapterError(w http.ResponseWriter, err error) {
	var ce *clawerrors.Error
	if errors.As(err, &ce) {
		status := http.StatusBadRequest
		if ce.Retriable {
			status = http.StatusServiceUnavailable
		}
		respondClawError(w, status, ce)
		return
	}
	respondError(w, http.StatusInternalServerError, clawerrors.CodeInternalError, err.Error())
}
