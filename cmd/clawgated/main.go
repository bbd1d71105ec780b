// Command clawgated is the coding-agent remote control daemon: it
// wires ConfigStore, the chat and pane surfaces, the dispatcher's
// localhost HTTP API, and the federation link, then serves until
// interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/clawgate/clawgate/internal/command"
	"github.com/clawgate/clawgate/internal/configstore"
	"github.com/clawgate/clawgate/internal/logging"
	"github.com/clawgate/clawgate/internal/pairing"
	"github.com/clawgate/clawgate/internal/runtime"
)

var version = "dev"

func defaultConfigDir() string {
	if dir := os.Getenv("CLAWGATE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clawgate"
	}
	return filepath.Join(home, ".clawgate")
}

func loadConfig() command.Config {
	return command.Config{
		ConfigDir:  defaultConfigDir(),
		ListenAddr: "127.0.0.1:8787",
	}
}

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(version, command.Deps{
		LoadConfig: loadConfig,
		RunServe: func(ctx context.Context, cfg command.Config) error {
			return runServe(ctx, os.Stdout, cfg)
		},
		RunPairShow: func(ctx context.Context, cfg command.Config) error {
			return runPairShow(ctx, os.Stdout, cfg)
		},
		RunConfigGet: func(ctx context.Context, cfg command.Config) error {
			return runConfigShow(ctx, os.Stdout, cfg)
		},
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		newRuntimeLogger(os.Stderr).Error("clawgated failed", "err", err)
		os.Exit(1)
	}
}

func newRuntimeLogger(w *os.File) *slog.Logger {
	return logging.NewLogger(logging.Options{Level: "info", Writer: w, Component: "clawgated"})
}

const defaultListenAddr = "127.0.0.1:8787"

func runServe(ctx context.Context, out *os.File, cfg command.Config) error {
	log := newRuntimeLogger(os.Stderr)
	listenAddr := cfg.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	rt, err := runtime.New(runtime.Options{
		ConfigDir:  cfg.ConfigDir,
		ListenAddr: listenAddr,
		TmuxSocket: cfg.TmuxSocket,
		Version:    version,
		Log:        log,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "clawgated %s listening at http://%s\n", version, listenAddr)
	return rt.Run(ctx)
}

func runPairShow(_ context.Context, out *os.File, cfg command.Config) error {
	store := configstore.NewConfigStore(cfg.ConfigDir)
	snapshot, err := store.LoadOrInit()
	if err != nil {
		return err
	}
	listenAddr := cfg.ListenAddr
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8787"
	}
	ticket := pairing.Ticket{WSURL: "ws://" + listenAddr + "/federation", Token: snapshot.Federation.Token}
	_, _ = fmt.Fprintf(out, "%s\n", ticket.URI())
	return nil
}

func runConfigShow(_ context.Context, out *os.File, cfg command.Config) error {
	store := configstore.NewConfigStore(cfg.ConfigDir)
	snapshot, err := store.LoadOrInit()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "node_role=%s\n", snapshot.NodeRole)
	_, _ = fmt.Fprintf(out, "chat.enabled=%t chat.bundle_id=%s\n", snapshot.Chat.Enabled, snapshot.Chat.BundleID)
	_, _ = fmt.Fprintf(out, "pane.enabled=%t pane.status_bar_url=%s\n", snapshot.Pane.Enabled, snapshot.Pane.StatusBarURL)
	_, _ = fmt.Fprintf(out, "federation.enabled=%t federation.url=%s\n", snapshot.Federation.Enabled, snapshot.Federation.URL)
	return nil
}
