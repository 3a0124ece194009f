package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/refscan/internal"
	"github.com/starford/refscan/internal/apperr"
	pkgconfig "github.com/starford/refscan/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Flags win over the file.
	if cmd.IsSet("dir") {
		cfg.Scan.BaseDir = cmd.String("dir")
	}
	if cmd.IsSet("source") {
		cfg.Scan.SourceRoot = cmd.String("source")
	}
	if cmd.IsSet("output") {
		cfg.Scan.Output = cmd.String("output")
	}
	if cmd.IsSet("fail-on-missing") {
		cfg.Scan.FailOnMissing = cmd.Bool("fail-on-missing")
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	return cfg, nil
}

func action(mode internal.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
			internal.WithVersion(version),
			internal.WithNoColor(cmd.Bool("no-color")),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			if errors.Is(err, apperr.ErrMissingRefs) {
				return err
			}
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "refscan",
		Usage:   "Find imports and asset references that point at files missing from a front-end source tree",
		Version: version,
		Action:  action(internal.ModeScan),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "refscan.yaml",
				Value:       "refscan.yaml",
				Sources:     cli.EnvVars("REFSCAN_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "Project base directory",
				Sources: cli.EnvVars("REFSCAN_DIR"),
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source root to scan, relative to the base directory",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "JSON report path",
			},
			&cli.BoolFlag{
				Name:  "fail-on-missing",
				Usage: "Exit with status 1 when anything is missing",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output (NO_COLOR is honored as well)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "Scan the tree once and write the report",
				Action: action(internal.ModeScan),
			},
			{
				Name:   "watch",
				Usage:  "Scan, then rescan whenever files change",
				Action: action(internal.ModeWatch),
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API with live scan events",
				Action: action(internal.ModeServe),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: action(internal.ModeMCP),
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, apperr.ErrMissingRefs) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
