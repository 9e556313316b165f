package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type PublishCmd struct {
	flags *Flags
}

func NewPublishCmd(flags *Flags) *PublishCmd {
	return &PublishCmd{flags: flags}
}

func (cmd *PublishCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "publish",
		Usage:     "Publish a saved draft with the images already on disk",
		UsageText: "xthread publish <thread-id>",
		Description: `Replays a saved draft. Images are taken from the draft's images directory by
tweet index; tweets without an image are posted as text only.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *PublishCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one thread id")
	}

	mgr, err := cmd.flags.Manager(nil)
	if err != nil {
		return err
	}
	res, err := mgr.PublishExisting(ctx, c.Args().First())
	if err != nil {
		return err
	}
	report(c, res)
	return nil
}
