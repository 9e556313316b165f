package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/config"
)

type InitCmd struct {
	flags *Flags
}

func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Write a sample configuration file",
		UsageText: "xthread init",
		Action:    cmd.run,
	})
	return app
}

func (cmd *InitCmd) run(ctx context.Context, c *cli.Command) error {
	path := cmd.flags.ConfigPath
	if path == "" {
		path = config.DefaultFile
	}
	if err := config.Init(path); err != nil {
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("%s already exists; edit it instead", path)
		}
		return err
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "Wrote %s\n", path)
	return nil
}
