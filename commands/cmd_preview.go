package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/thread"
)

type PreviewCmd struct {
	flags *Flags

	style string
	width int
}

func NewPreviewCmd(flags *Flags) *PreviewCmd {
	return &PreviewCmd{flags: flags}
}

func (cmd *PreviewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "preview",
		Usage:     "Render a saved draft in the terminal",
		UsageText: "xthread preview [--style dark] <thread-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "style",
				Usage:       "glamour style (dark, light, notty, ...)",
				Value:       thread.DefaultStyle,
				Destination: &cmd.style,
			},
			&cli.IntFlag{
				Name:        "width",
				Usage:       "word wrap width",
				Value:       thread.DefaultWidth,
				Destination: &cmd.width,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *PreviewCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one thread id")
	}

	store := cmd.flags.Store()
	id := c.Args().First()
	src, err := os.ReadFile(store.DocumentPath(id))
	if err != nil {
		return fmt.Errorf("read draft %s: %w", id, err)
	}

	rendered, err := thread.Preview(src, cmd.style, cmd.width)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(c.Root().Writer, rendered)
	return nil
}
