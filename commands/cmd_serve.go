package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/generator"
	"auto_x_thread_publisher/logutils"
	"auto_x_thread_publisher/server"
)

type ServeCmd struct {
	flags *Flags

	addr string
}

func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve saved drafts and their images over local HTTP",
		UsageText: "xthread serve [--addr 127.0.0.1:8080]",
		Description: `Starts a preview server for the threads directory. When an LLM API key is
available, POST /api/sessions also generates and saves new drafts.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (defaults to server.addr)",
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	addr := cmd.addr
	if addr == "" {
		addr = cmd.flags.Config.Server.Addr
	}

	var agent *generator.Agent
	if a, err := cmd.flags.Agent(); err != nil {
		log.Warn().Err(err).Msg("generation endpoints disabled")
	} else {
		agent = a
	}

	srv, err := server.New(cmd.flags.Store(), agent, cmd.flags.Config.Generation.TweetCount, logutils.Component("server"))
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	_, _ = fmt.Fprintf(c.Root().Writer, "Serving drafts on http://%s\n", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
