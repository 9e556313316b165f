package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/thread"
)

type NewCmd struct {
	flags *Flags

	count int
}

func NewNewCmd(flags *Flags) *NewCmd {
	return &NewCmd{flags: flags}
}

func (cmd *NewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "new",
		Usage:     "Generate a thread on a topic, review it, then publish",
		UsageText: "xthread new [--count N] <topic>",
		Description: `Generates a thread, saves it under the threads directory and stops for review.

Edit thread.md while the review prompt is open: image queries and custom image
URLs are read back before images are resolved. Nothing is posted until the
thread is accepted.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "number of tweets to ask for (defaults to generation.tweet_count)",
				Destination: &cmd.count,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *NewCmd) run(ctx context.Context, c *cli.Command) error {
	topic := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if cmd.count > 0 {
		cmd.flags.Config.Generation.TweetCount = cmd.count
	}

	agent, err := cmd.flags.Agent()
	if err != nil {
		return fmt.Errorf("setup generator: %w", err)
	}
	mgr, err := cmd.flags.Manager(agent)
	if err != nil {
		return err
	}

	res, err := mgr.CreateAndPublish(ctx, topic)
	if err != nil {
		return err
	}
	report(c, res)
	return nil
}

func report(c *cli.Command, res thread.Result) {
	out := c.Root().Writer
	if res.Declined {
		if res.ThreadID != "" {
			_, _ = fmt.Fprintf(out, "Stopped. Draft kept as %s\n", res.ThreadID)
		} else {
			_, _ = fmt.Fprintln(out, "Stopped. Nothing was saved.")
		}
		return
	}

	_, _ = fmt.Fprintf(out, "Published %s: %d tweets, %d images (%s)\n",
		res.ThreadID, res.Publish.Slots, res.ImagesAttached, res.Publish.State)
	if len(res.Publish.Hazards) > 0 {
		_, _ = fmt.Fprintf(out, "Check tweets %v: a suggestion popup stayed open while composing\n", oneBased(res.Publish.Hazards))
	}
}

func oneBased(idx []int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = v + 1
	}
	return out
}
