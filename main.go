package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/commands"
	"auto_x_thread_publisher/config"
	"auto_x_thread_publisher/logutils"
)

var version = "dev"

func build() string {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				return mv
			}
		}
	}
	return version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCloser func()
	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "xthread",
		Usage:     "Generate, review and publish illustrated X threads",
		UsageText: "xthread [global options] command [command options]",
		Description: `xthread asks an LLM for a numbered thread, saves it as an editable markdown
draft, finds one image per tweet and posts the thread through a logged-in
browser profile.

Run 'xthread install' once, then 'xthread new "<topic>"'.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error); defaults to log_level from config",
				Sources:     cli.EnvVars(config.EnvPrefix + "LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars(config.EnvPrefix + "LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (defaults to ./" + config.DefaultFile + " when present)",
				Sources:     cli.EnvVars(config.EnvPrefix + "CONFIG"),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "threads-dir",
				Usage:       "directory holding drafts (overrides threads_dir)",
				Destination: &flags.ThreadsDir,
			},
			&cli.BoolFlag{
				Name:        "auto-confirm",
				Aliases:     []string{"y"},
				Usage:       "accept automatically found images without asking",
				Destination: &flags.AutoConfirm,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			switch c.Args().First() {
			case "init", "install":
				logger, closer, err := logutils.New(levelOr(flags.LogLevel, "info"), flags.LogFile)
				if err != nil {
					return ctx, fmt.Errorf("setup logger: %w", err)
				}
				log.Logger = logger
				logCloser = closer
				return ctx, nil
			}

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			logFile := flags.LogFile
			if logFile == "" {
				logFile = cfg.LogFile
			}
			logger, closer, err := logutils.New(levelOr(flags.LogLevel, cfg.LogLevel), logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewNewCmd(flags).Register(app)
	app = commands.NewPublishCmd(flags).Register(app)
	app = commands.NewLsCmd(flags).Register(app)
	app = commands.NewPreviewCmd(flags).Register(app)
	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewInitCmd(flags).Register(app)
	app = commands.NewInstallCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}

	stop()
	os.Exit(exitCode)
}

func levelOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
