package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/draft"
)

type LsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List saved drafts",
		UsageText: "xthread ls [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})
	return app
}

type draftInfo struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Status  string `json:"status"`
	Created string `json:"created"`
	Tweets  int    `json:"tweets"`
	Error   string `json:"error,omitempty"`
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	list, err := cmd.flags.Store().List()
	if err != nil {
		return fmt.Errorf("list drafts: %w", err)
	}
	out := c.Root().Writer

	if len(list) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No drafts found\n")
		}
		return nil
	}

	if cmd.jsonOutput {
		enc := json.NewEncoder(out)
		for _, d := range list {
			if err := enc.Encode(toInfo(d)); err != nil {
				return fmt.Errorf("encode draft: %w", err)
			}
		}
		return nil
	}

	var broken []draft.Summary
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tTWEETS\tCREATED\tTOPIC")
	for _, d := range list {
		if d.Err != nil {
			broken = append(broken, d)
			continue
		}
		info := toInfo(d)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", info.ID, info.Status, info.Tweets, info.Created, info.Topic)
	}
	_ = w.Flush()

	if len(broken) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d draft(s) could not be read:\n", len(broken))
		for _, d := range broken {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", d.ID, d.Err)
		}
	}
	return nil
}

func toInfo(d draft.Summary) draftInfo {
	info := draftInfo{
		ID:     d.ID,
		Topic:  d.Topic,
		Status: string(d.Status),
		Tweets: d.Posts,
	}
	if !d.CreatedAt.IsZero() {
		info.Created = d.CreatedAt.Format(time.DateTime)
	}
	if d.Err != nil {
		info.Error = d.Err.Error()
	}
	return info
}
