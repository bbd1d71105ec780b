package command

import (
	"context"
	"testing"
)

func TestBuildApp_DefaultCommandRunsServe(t *testing.T) {
	served := 0
	app := BuildApp("test", Deps{
		LoadConfig: func() Config { return Config{ListenAddr: "127.0.0.1:8787"} },
		RunServe: func(context.Context, Config) error {
			served++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"clawgated"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if served != 1 {
		t.Fatalf("expected serve called once, got %d", served)
	}
}

func TestBuildApp_ServeCommand_RunsServe(t *testing.T) {
	served := 0
	app := BuildApp("test", Deps{
		RunServe: func(context.Context, Config) error {
			served++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"clawgated", "serve"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if served != 1 {
		t.Fatalf("expected serve called once, got %d", served)
	}
}

func TestBuildApp_ServeFlags_OverrideConfig(t *testing.T) {
	var got Config
	app := BuildApp("test", Deps{
		LoadConfig: func() Config {
			return Config{ListenAddr: "127.0.0.1:8787", TmuxSocket: "", ConfigDir: "/default"}
		},
		RunServe: func(_ context.Context, cfg Config) error {
			got = cfg
			return nil
		},
	})
	args := []string{
		"clawgated", "serve",
		"--listen", "0.0.0.0:9000",
		"--tmux-socket", "/tmp/tmux.sock",
	}
	if err := app.RunContext(context.Background(), args); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got.ListenAddr != "0.0.0.0:9000" || got.TmuxSocket != "/tmp/tmux.sock" {
		t.Fatalf("flags did not override config: %+v", got)
	}
}

func TestBuildApp_ServeRejectsUnexpectedArgument(t *testing.T) {
	app := BuildApp("test", Deps{
		RunServe: func(context.Context, Config) error { return nil },
	})
	err := app.RunContext(context.Background(), []string{"clawgated", "serve", "bogus"})
	if err == nil {
		t.Fatal("expected error for unexpected argument")
	}
}

func TestBuildApp_PairShow_CallsRunner(t *testing.T) {
	shown := 0
	app := BuildApp("test", Deps{
		RunPairShow: func(context.Context, Config) error {
			shown++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"clawgated", "pair", "show"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if shown != 1 {
		t.Fatalf("expected pair show called once, got %d", shown)
	}
}

func TestBuildApp_ConfigShow_CallsRunner(t *testing.T) {
	shown := 0
	app := BuildApp("test", Deps{
		RunConfigGet: func(context.Context, Config) error {
			shown++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"clawgated", "config", "show"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if shown != 1 {
		t.Fatalf("expected config show called once, got %d", shown)
	}
}

func TestBuildApp_MissingRunnerErrors(t *testing.T) {
	app := BuildApp("test", Deps{})
	if err := app.RunContext(context.Background(), []string{"clawgated"}); err == nil {
		t.Fatal("expected error when serve runner is not configured")
	}
}
