// Package runtime is the L13 assembly point: it wires ConfigStore,
// EventBus, StatsCollector, OpsLogStore, the ChatSurface and PaneSurface
// adapters, AdapterRegistry, RequestDispatcher, FederationHub, and
// PaneInboundWatcher together and supervises their lifecycles.
package runtime

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/clawgate/clawgate/internal/adapters"
	"github.com/clawgate/clawgate/internal/chatsurface"
	"github.com/clawgate/clawgate/internal/chatsurface/axhost"
	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/configstore"
	"github.com/clawgate/clawgate/internal/dispatcher"
	"github.com/clawgate/clawgate/internal/eventbus"
	"github.com/clawgate/clawgate/internal/federation"
	"github.com/clawgate/clawgate/internal/inbound"
	"github.com/clawgate/clawgate/internal/lifecycle"
	"github.com/clawgate/clawgate/internal/opslog"
	"github.com/clawgate/clawgate/internal/pairing"
	"github.com/clawgate/clawgate/internal/panesurface"
	"github.com/clawgate/clawgate/internal/panewatch"
	"github.com/clawgate/clawgate/internal/stall"
	"github.com/clawgate/clawgate/internal/statsstore"
	"github.com/clawgate/clawgate/internal/statusbar"
	"github.com/clawgate/clawgate/internal/wsclient"
)

// Options configures one daemon instance. Zero values pick sensible
// defaults for a standalone, loopback-only node.
type Options struct {
	ConfigDir  string
	ListenAddr string
	Version    string
	TmuxSocket string
	Log        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ListenAddr == "" {
		o.ListenAddr = "127.0.0.1:8787"
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.Log == nil {
		o.Log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return o
}

// Runtime is the fully wired daemon: every component plus the
// lifecycle.Manager that supervises their run/shutdown jobs.
type Runtime struct {
	opts Options

	Config     *configstore.ConfigStore
	Bus        *eventbus.Bus
	Stats      *statsstore.Store
	Ops        *opslog.Store
	Adapters   *adapters.Registry
	Federation *federation.Hub
	Dispatcher *dispatcher.Server
	Sessions   *statusbar.Index

	httpServer *http.Server
	manager    *lifecycle.Manager
}

var defaultChatSelectors = struct {
	search, message, send, transcript, conversationList chatsurface.Selector
}{
	search:           chatsurface.Selector{Role: "text_field", TextHints: []string{"search", "conversation"}, MustBeSettable: []string{"value"}},
	message:          chatsurface.Selector{Role: "text_area", TextHints: []string{"message", "reply"}, MustBeSettable: []string{"value"}},
	send:             chatsurface.Selector{Role: "button", TextHints: []string{"send"}, RequiredActions: []string{"AXPress"}},
	transcript:       chatsurface.Selector{Role: "text_area", TextHints: []string{"transcript", "conversation"}, GeometryHint: chatsurface.GeometryHint{RegionY: chatsurface.Range{Min: 0, Max: 0.85}, MinWidth: 0.3}},
	conversationList: chatsurface.Selector{Role: "list", TextHints: []string{"conversations", "history"}, GeometryHint: chatsurface.GeometryHint{RegionX: chatsurface.Range{Min: 0, Max: 0.3}}},
}

const inboundPollInterval = 2 * time.Second

// New wires every component from cfg on disk at opts.ConfigDir. It does
// not start anything — call Run to supervise the wired components.
func New(opts Options) (*Runtime, error) {
	opts = opts.withDefaults()
	log := opts.Log

	cfgStore := configstore.NewConfigStore(opts.ConfigDir)
	snapshot, err := cfgStore.LoadOrInit()
	if err != nil {
		return nil, err
	}

	bus := eventbus.New(eventbus.DefaultCap)

	stats, err := statsstore.Open(filepath.Join(opts.ConfigDir, "stats.db"))
	if err != nil {
		return nil, err
	}
	bus.Subscribe(func(ev clawtypes.Event) {
		go func() { _ = stats.ObserveEvent(ev) }()
	})
	ops, err := opslog.Open(filepath.Join(opts.ConfigDir, "ops.db"))
	if err != nil {
		return nil, err
	}

	host, err := axhost.New()
	if err != nil {
		return nil, err
	}
	chat := chatsurface.NewSurface(host, snapshot.Chat.BundleID,
		defaultChatSelectors.search, defaultChatSelectors.message, defaultChatSelectors.send)

	tmuxAdapter := panesurface.NewAdapterWithSocket(&panesurface.RealExec{}, opts.TmuxSocket)
	sessions := statusbar.NewIndex()
	modes := configModeLookup{config: cfgStore}
	paneSurface := panesurface.NewSurface(tmuxAdapter, sessions, modes)

	registry := adapters.NewRegistry()
	chatAd := newChatAdapter(chat, defaultChatSelectors.transcript, defaultChatSelectors.conversationList)
	registry.MustRegister(chatAd)
	registry.MustRegister(newPaneAdapter(paneSurface, sessions))

	structuralSource := chatsurface.NewStructuralSource(host, snapshot.Chat.BundleID, defaultChatSelectors.transcript,
		func() string { return cfgStore.Current().Chat.DefaultConversation })
	detector := inbound.New([]inbound.SignalSource{structuralSource}, bus, inboundAdapterName, inbound.Config{
		Mode:             func() clawtypes.DetectionMode { return cfgStore.Current().Chat.DetectionMode },
		FusionThreshold:  func() int { return cfgStore.Current().Chat.FusionThreshold },
		WindowTitle:      func() string { return "" },
		IsForeground:     func() bool { return cfgStore.Current().Chat.Enabled },
		ConversationHint: func() string { return cfgStore.Current().Chat.DefaultConversation },
	})
	chatAd.detector = detector

	stallDetector := stall.New(ops)

	fedHub := federation.New(log.With("component", "federation"))

	ticket := func() pairing.Ticket {
		cur := cfgStore.Current()
		return pairing.Ticket{WSURL: "ws://" + opts.ListenAddr + "/federation", Token: cur.Federation.Token}
	}

	rt := &Runtime{
		opts: opts, Config: cfgStore, Bus: bus, Stats: stats, Ops: ops,
		Adapters: registry, Federation: fedHub, Sessions: sessions,
		manager: lifecycle.NewManager(),
	}

	rt.Dispatcher = dispatcher.NewServer(dispatcher.Deps{
		Log:       log.With("component", "dispatcher"),
		Version:   opts.Version,
		Bus:       bus,
		Config:    dispatcherConfigReader{cfgStore},
		Stats:     stats,
		Ops:       ops,
		Adapters:  registry,
		Federator: fedHub,
		Stall:     stallDetector,
		LocalModeOwnsProject: func(project string) bool {
			for _, st := range knownSessionTypes {
				if mode := modes.SessionMode(st, project); mode == clawtypes.SessionModeAuto || mode == clawtypes.SessionModeAutonomous {
					return true
				}
			}
			return false
		},
		Ticket:             ticket,
		FederationUpgrade:  rt.federationUpgradeHandler,
	})

	watcher := panewatch.New(tmuxAdapter, paneSurface, bus, modes)

	rt.wireLifecycle(cfgStore, watcher, sessions, detector)
	return rt, nil
}

// federationUpgradeHandler gates /federation on the node's configured
// role: only a server-role node accepts inbound peers.
func (rt *Runtime) federationUpgradeHandler(w http.ResponseWriter, r *http.Request) {
	cfg := rt.Config.Current()
	if cfg.NodeRole != clawtypes.NodeRoleServer {
		http.Error(w, "not_found", http.StatusNotFound)
		return
	}
	rt.Federation.ServeUpgrade(cfg.Federation.Token)(w, r)
}

func (rt *Runtime) wireLifecycle(cfgStore *configstore.ConfigStore, watcher *panewatch.Watcher, sessions *statusbar.Index, detector *inbound.Detector) {
	log := rt.opts.Log

	rt.httpServer = &http.Server{Addr: rt.opts.ListenAddr, Handler: rt.Dispatcher.Handler()}
	rt.manager.AddRun("http", func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- rt.httpServer.ListenAndServe() }()
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return rt.httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})

	rt.manager.AddRun("config-watch", func(ctx context.Context) error {
		return cfgStore.Watch(ctx, log.With("component", "configstore"))
	})

	rt.manager.AddRun("federation-client", func(ctx context.Context) error {
		return rt.runFederationClient(ctx)
	})

	rt.manager.AddRun("status-bar", func(ctx context.Context) error {
		return rt.runStatusBar(ctx, watcher, sessions)
	})

	rt.manager.AddRun("inbound-poll", func(ctx context.Context) error {
		ticker := time.NewTicker(inboundPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				detector.Tick(now)
			}
		}
	})

	rt.manager.AddShutdown("stats-db", func(context.Context) error { return rt.Stats.Close() })
	rt.manager.AddShutdown("ops-db", func(context.Context) error { return rt.Ops.Close() })
}

// runFederationClient dials out to the configured federation peer when
// this node holds the client role; a standalone or server node has
// nothing to dial (server accepts inbound via ServeUpgrade instead).
func (rt *Runtime) runFederationClient(ctx context.Context) error {
	const retryDelay = 5 * time.Second
	for {
		cfg := rt.Config.Current()
		dialer := wsclient.RealDialer{Token: cfg.Federation.Token}
		if cfg.NodeRole != clawtypes.NodeRoleClient || !cfg.Federation.Enabled || cfg.Federation.URL == "" {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
				continue
			}
		}

		sock, err := dialer.Dial(ctx, cfg.Federation.URL)
		if err != nil {
			rt.opts.Log.Warn("federation: dial failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
				continue
			}
		}
		if err := rt.Federation.AttachPeer(ctx, sock); err != nil {
			rt.opts.Log.Warn("federation: peer session ended", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// runStatusBar dials the configured status-bar feed and keeps Sessions
// in sync, redialing on disconnect.
func (rt *Runtime) runStatusBar(ctx context.Context, watcher *panewatch.Watcher, sessions *statusbar.Index) error {
	const retryDelay = 5 * time.Second
	dialer := wsclient.RealDialer{}
	for {
		cfg := rt.Config.Current()
		if !cfg.Pane.Enabled || cfg.Pane.StatusBarURL == "" {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
				continue
			}
		}

		sock, err := dialer.Dial(ctx, cfg.Pane.StatusBarURL)
		if err != nil {
			rt.opts.Log.Warn("statusbar: dial failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
				continue
			}
		}
		client := statusbar.NewClient(sock, sessions, watcher, rt.opts.Log.With("component", "statusbar"))
		if err := client.Run(ctx); err != nil {
			rt.opts.Log.Warn("statusbar: connection ended, retrying", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// Run starts every wired component and blocks until ctx is cancelled or
// an unrecoverable run-job error occurs.
func (rt *Runtime) Run(ctx context.Context, sig ...os.Signal) error {
	return rt.manager.StartAndWait(ctx, sig...)
}

// dispatcherConfigReader adapts configstore.ConfigStore to
// dispatcher.ConfigReader.
type dispatcherConfigReader struct {
	store *configstore.ConfigStore
}

func (d dispatcherConfigReader) Current() clawtypes.ConfigSnapshot { return d.store.Current() }

func (d dispatcherConfigReader) Save(cfg clawtypes.ConfigSnapshot) error { return d.store.Save(cfg) }

// inboundAdapterName names the adapter InboundDetector stamps on the
// events it publishes, matching the chat adapter's registry name.
const inboundAdapterName = "chat"
