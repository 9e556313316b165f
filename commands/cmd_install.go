package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/browser"
)

type InstallCmd struct {
	flags *Flags
}

func NewInstallCmd(flags *Flags) *InstallCmd {
	return &InstallCmd{flags: flags}
}

func (cmd *InstallCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "install",
		Usage:       "Download the browser driver and Chromium",
		UsageText:   "xthread install",
		Description: "Run once before the first publish, then log in to X in the opened profile.",
		Action:      cmd.run,
	})
	return app
}

func (cmd *InstallCmd) run(ctx context.Context, c *cli.Command) error {
	if err := browser.Install(); err != nil {
		return fmt.Errorf("install browser: %w", err)
	}
	_, _ = fmt.Fprintln(c.Root().Writer, "Browser installed.")
	return nil
}
