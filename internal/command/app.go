// Package command builds the clawgated CLI surface on urfave/cli/v2.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

// Config is the subset of startup options the CLI layer can override
// with flags before handing off to the runtime.
type Config struct {
	ConfigDir  string
	ListenAddr string
	TmuxSocket string
}

// Deps wires the CLI's actions to the runtime package without this
// package importing it directly, so app.go stays testable with fakes.
type Deps struct {
	LoadConfig   func() Config
	RunServe     func(ctx context.Context, cfg Config) error
	RunPairShow  func(ctx context.Context, cfg Config) error
	RunConfigGet func(ctx context.Context, cfg Config) error
}

// BuildApp assembles the clawgated CLI: bare invocation and `serve` both
// start the daemon, `pair show` prints the current pairing URI, and
// `config show` prints a summary of the effective on-disk config.
func BuildApp(version string, deps Deps) *cli.App {
	return &cli.App{
		Name:    "clawgated",
		Usage:   "coding-agent remote control daemon",
		Version: version,
		Action: func(ctx *cli.Context) error {
			cfg := loadConfig(deps)
			return runServe(ctx.Context, deps, cfg, ctx)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the dispatcher, chat surface, and pane surface",
				Flags: serveFlags(),
				Action: func(ctx *cli.Context) error {
					cfg := loadConfig(deps)
					return runServe(ctx.Context, deps, cfg, ctx)
				},
			},
			{
				Name:  "pair",
				Usage: "federation pairing",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "print the current pairing URI",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							return runPairShow(ctx.Context, deps, cfg)
						},
					},
				},
			},
			{
				Name:  "config",
				Usage: "on-disk configuration",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "print a summary of the effective configuration",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							return runConfigGet(ctx.Context, deps, cfg)
						},
					},
				},
			},
		},
	}
}

func loadConfig(deps Deps) Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return Config{}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "local listen address, host:port",
		},
		&cli.StringFlag{
			Name:  "config-dir",
			Usage: "clawgated config directory",
		},
		&cli.StringFlag{
			Name:  "tmux-socket",
			Usage: "tmux socket path",
		},
	}
}

func runServe(ctx context.Context, deps Deps, cfg Config, cliCtx *cli.Context) error {
	if cliCtx != nil && cliCtx.Args().Len() > 0 {
		return fmt.Errorf("unexpected argument: %s", cliCtx.Args().First())
	}
	cfg = applyServeFlagOverrides(cliCtx, cfg)
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx, cfg)
}

func applyServeFlagOverrides(cliCtx *cli.Context, cfg Config) Config {
	if cliCtx == nil {
		return cfg
	}
	if cliCtx.IsSet("listen") {
		cfg.ListenAddr = strings.TrimSpace(cliCtx.String("listen"))
	}
	if cliCtx.IsSet("tmux-socket") {
		cfg.TmuxSocket = strings.TrimSpace(cliCtx.String("tmux-socket"))
	}
	if cliCtx.IsSet("config-dir") {
		cfg.ConfigDir = strings.TrimSpace(cliCtx.String("config-dir"))
		_ = os.Setenv("CLAWGATE_CONFIG_DIR", cfg.ConfigDir)
	}
	return cfg
}

func runPairShow(ctx context.Context, deps Deps, cfg Config) error {
	if deps.RunPairShow == nil {
		return errors.New("pair show runner is not configured")
	}
	return deps.RunPairShow(ctx, cfg)
}

func runConfigGet(ctx context.Context, deps Deps, cfg Config) error {
	if deps.RunConfigGet == nil {
		return errors.New("config show runner is not configured")
	}
	return deps.RunConfigGet(ctx, cfg)
}
