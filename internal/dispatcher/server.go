// Package dispatcher is RequestDispatcher (spec L10): the loopback HTTP
// surface, its pre-routing pipeline, the event-loop/blocking-worker
// split, and SSE streaming.
package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clawgate/clawgate/internal/adapters"
	"github.com/clawgate/clawgate/internal/clawerrors"
	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/eventbus"
	"github.com/clawgate/clawgate/internal/opslog"
	"github.com/clawgate/clawgate/internal/pairing"
	"github.com/clawgate/clawgate/internal/stall"
	"github.com/clawgate/clawgate/internal/statsstore"
)

// EventBus is the subset of eventbus.Bus the dispatcher depends on.
type EventBus interface {
	Poll(since *int64) (events []clawtypes.Event, nextCursor int64)
	Subscribe(cb func(clawtypes.Event)) eventbus.SubscriptionHandle
	Unsubscribe(handle eventbus.SubscriptionHandle)
	Append(typ clawtypes.EventType, adapter string, payload map[string]string) clawtypes.Event
}

// ConfigReader is the subset of configstore.ConfigStore the dispatcher
// depends on for per-request snapshots and session-mode writes.
type ConfigReader interface {
	Current() clawtypes.ConfigSnapshot
	Save(cfg clawtypes.ConfigSnapshot) error
}

// StatsIncrementer is the subset of statsstore.Store used for api_requests
// and per-adapter send counters, plus reading totals back out for
// GET /v1/stats.
type StatsIncrementer interface {
	Increment(key, adapter string, at time.Time) error
	Totals(day string) ([]statsstore.DailyCounter, error)
}

// OpsLogger is the subset of opslog.Store used to record dispatch outcomes
// and to answer GET /v1/ops/logs.
type OpsLogger interface {
	Append(level, event, role, script string, fields opslog.Fields) error
	Recent(limit int, level, trace string) ([]opslog.Entry, error)
}

// StallEvaluator is the subset of stall.Detector the autonomous-status
// endpoint depends on.
type StallEvaluator interface {
	Evaluate(project string, now time.Time, hasNonIgnoreTarget, isLineSendLocal bool, emit stall.EmitFunc) (stall.Status, error)
}

// Federator is the subset of federation.Hub used for preflight/fallback
// forwarding.
type Federator interface {
	Connected() bool
	SendCommand(ctx context.Context, forProject string, cmd clawtypes.FederationCommand) (clawtypes.FederationResponse, error)
}

// lowValuePaths are excluded from api_requests counting.
var lowValuePaths = map[string]struct{}{
	"/v1/health":   {},
	"/v1/poll":     {},
	"/v1/events":   {},
	"/v1/stats":    {},
	"/v1/ops/logs": {},
}

// blockingPaths is the *Blocking class* from the pre-routing pipeline:
// every accessibility-touching or otherwise slow endpoint, offloaded to
// the single serial worker.
var blockingPaths = map[string]struct{}{
	"/v1/send":              {},
	"/v1/context":           {},
	"/v1/messages":          {},
	"/v1/conversations":     {},
	"/v1/axdump":            {},
	"/v1/doctor":            {},
	"/v1/tmux/session-mode": {},
	"/v1/debug/inject":      {},
	"/v1/autonomous/status": {},
}

// routeMethods is the known-path -> required-method table driving the
// pipeline's first step. An empty value means the path accepts more than
// one method, checked in-handler (GET/PUT on /v1/tmux/session-mode).
var routeMethods = map[string]string{
	"/v1/health":            http.MethodGet,
	"/v1/config":            http.MethodGet,
	"/v1/stats":             http.MethodGet,
	"/v1/ops/logs":          http.MethodGet,
	"/v1/poll":              http.MethodGet,
	"/v1/events":            http.MethodGet,
	"/v1/send":              http.MethodPost,
	"/v1/context":           http.MethodGet,
	"/v1/messages":          http.MethodGet,
	"/v1/conversations":     http.MethodGet,
	"/v1/axdump":            http.MethodGet,
	"/v1/doctor":            http.MethodGet,
	"/v1/tmux/session-mode": "",
	"/v1/autonomous/status": http.MethodGet,
	"/v1/debug/inject":      http.MethodPost,
	"/federation":           http.MethodGet,
	"/v1/pair/qr":           http.MethodGet,
}

// Server is RequestDispatcher.
type Server struct {
	mux     *http.ServeMux
	log     *slog.Logger
	version string

	bus       EventBus
	config    ConfigReader
	stats     StatsIncrementer
	ops       OpsLogger
	adapters  *adapters.Registry
	federator Federator
	stall     StallEvaluator

	// localModeOwnsProject reports whether this node already knows a
	// local auto/autonomous session mode for project, in which case
	// federation preflight forwarding is skipped. Nil disables preflight.
	localModeOwnsProject func(project string) bool

	worker *blockingWorker
}

type Deps struct {
	Log       *slog.Logger
	Version   string
	Bus       EventBus
	Config    ConfigReader
	Stats     StatsIncrementer
	Ops       OpsLogger
	Adapters  *adapters.Registry
	Federator Federator
	// Stall is optional; when set, GET /v1/autonomous/status is backed by
	// it. Nil reports an empty project list rather than 404.
	Stall StallEvaluator
	// LocalModeOwnsProject is the preflight-skip predicate; see the
	// Server field doc for semantics.
	LocalModeOwnsProject func(project string) bool
	// Ticket is optional; when set, GET /v1/pair/qr is registered.
	Ticket pairing.TicketFunc
	// FederationUpgrade is optional; when set, GET /federation is
	// registered directly on the mux (it does its own bearer check and
	// hijacks the connection, so it bypasses the pre-routing pipeline).
	FederationUpgrade http.HandlerFunc
}

func NewServer(deps Deps) *Server {
	s := &Server{
		mux:                  http.NewServeMux(),
		log:                  deps.Log,
		version:              deps.Version,
		bus:                  deps.Bus,
		config:               deps.Config,
		stats:                deps.Stats,
		ops:                  deps.Ops,
		adapters:             deps.Adapters,
		federator:            deps.Federator,
		stall:                deps.Stall,
		localModeOwnsProject: deps.LocalModeOwnsProject,
		worker:               newBlockingWorker(),
	}

	s.mux.HandleFunc("/v1/health", s.pipeline(s.handleHealth))
	s.mux.HandleFunc("/v1/config", s.pipeline(s.handleConfig))
	s.mux.HandleFunc("/v1/poll", s.pipeline(s.handlePoll))
	s.mux.HandleFunc("/v1/events", s.pipeline(s.handleSSE))
	s.mux.HandleFunc("/v1/stats", s.pipeline(s.handleStats))
	s.mux.HandleFunc("/v1/ops/logs", s.pipeline(s.handleOpsLogs))
	s.mux.HandleFunc("/v1/send", s.pipeline(s.handleSend))
	s.mux.HandleFunc("/v1/context", s.pipeline(s.handleContext))
	s.mux.HandleFunc("/v1/messages", s.pipeline(s.handleMessages))
	s.mux.HandleFunc("/v1/conversations", s.pipeline(s.handleConversations))
	s.mux.HandleFunc("/v1/axdump", s.pipeline(s.handleAXDump))
	s.mux.HandleFunc("/v1/doctor", s.pipeline(s.handleDoctor))
	s.mux.HandleFunc("/v1/tmux/session-mode", s.pipeline(s.handleTmuxSessionMode))
	s.mux.HandleFunc("/v1/autonomous/status", s.pipeline(s.handleAutonomousStatus))
	s.mux.HandleFunc("/v1/debug/inject", s.pipeline(s.handleDebugInject))
	if deps.Ticket != nil {
		s.mux.HandleFunc("/v1/pair/qr", s.pipeline(pairing.Handler(deps.Ticket)))
	}
	if deps.FederationUpgrade != nil {
		s.mux.HandleFunc("/federation", deps.FederationUpgrade)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// pipeline wraps next with the pre-routing steps: method check, CSRF
// guard, bearer authorization, and api_requests counting, in that order.
func (s *Server) pipeline(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if want, known := routeMethods[r.URL.Path]; known && want != "" && r.Method != want {
			respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed for this path")
			return
		}

		if r.Method == http.MethodPost && strings.TrimSpace(r.Header.Get("Origin")) != "" {
			respondError(w, http.StatusForbidden, "browser_origin_rejected", "browser-originated requests are refused")
			return
		}

		cfg := s.config.Current()
		if r.URL.Path != "/v1/health" && cfg.RemoteAccess && cfg.RemoteToken != "" {
			if !bearerMatches(r, cfg.RemoteToken) {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
				return
			}
		}

		if _, low := lowValuePaths[r.URL.Path]; !low && s.stats != nil {
			_ = s.stats.Increment("api_requests", "dispatcher", time.Now().UTC())
		}

		if _, blocking := blockingPaths[r.URL.Path]; blocking {
			s.worker.Submit(func() { next(w, r) })
			return
		}
		next(w, r)
	}
}

func bearerMatches(r *http.Request, token string) bool {
	got := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	return strings.TrimPrefix(got, prefix) == token
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": s.version})
}

func respondOK(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

// respondError writes the envelope's error object with code, message,
// and retriable=false; it carries no failed_step (see respondClawError).
func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": map[string]any{
		"code": code, "message": message, "retriable": false,
	}})
}

// respondClawError writes err's code/message/retriable/failed_step
// directly from its clawerrors.Error fields.
func respondClawError(w http.ResponseWriter, status int, err *clawerrors.Error) {
	errObj := map[string]any{"code": err.Code, "message": err.Message, "retriable": err.Retriable}
	if err.FailedStep != "" {
		errObj["failed_step"] = err.FailedStep
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": errObj})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
