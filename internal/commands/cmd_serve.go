package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/core/logging"
	"github.com/hay-kot/tradeoff/internal/scoring/server"
	"github.com/hay-kot/tradeoff/internal/tradeoff"
)

type ServeCmd struct {
	flags *Flags

	// flags
	addr string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the scoring service backed by Gemini",
		UsageText: "tradeoff serve [--addr host:port]",
		Description: `Hosts POST /analyze, POST /verify and GET /health in front of the Gemini
scorer so clients using the http backend need no model credentials.

The API key is read from the environment variable named by gemini.api_key_env
(GEMINI_API_KEY by default). A .env file in the working directory is loaded
on start.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (defaults to server.addr from config)",
				Sources:     cli.EnvVars("TRADEOFF_SERVER_ADDR"),
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config

	addr := cmd.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	scorer, err := tradeoff.NewScorer(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}

	srv := server.New(scorer, server.Options{
		Addr:   addr,
		Logger: logging.Component(logging.CmpServer),
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer{w: c.Root().Writer}.Infof("Scoring service listening on %s (model %s)", addr, scorer.Model())
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
