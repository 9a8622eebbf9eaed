package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/folio/internal"
	pkgconfig "github.com/starford/folio/pkg/config"
)

var version = "dev"

type runFunc func(ctx context.Context, opts ...internal.Option) error

func action(fn runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithForce(cmd.Bool("force")),
			internal.WithVersion(version),
		}

		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "folio.yaml",
			Value:       "folio.yaml",
			Sources:     cli.EnvVars("FOLIO_CONFIG_FILE"),
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Re-render every document, ignoring change detection",
			Sources: cli.EnvVars("FOLIO_FORCE"),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "folio",
		Usage:   "Incremental static blog builder",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Reconcile the output tree with the source documents",
				Flags:  flags(),
				Action: action(internal.Build),
			},
			{
				Name:   "serve",
				Usage:  "Build, then preview the site with live reload and rebuild on change",
				Flags:  flags(),
				Action: action(internal.Serve),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the post index to MCP clients over stdio",
				Flags:  flags(),
				Action: action(internal.MCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
