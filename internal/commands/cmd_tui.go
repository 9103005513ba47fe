package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/core/logging"
	"github.com/hay-kot/tradeoff/internal/tradeoff"
	"github.com/hay-kot/tradeoff/internal/tui"
	"github.com/hay-kot/tradeoff/pkg/profiler"
)

type TuiCmd struct {
	flags *Flags
	app   *tradeoff.App
}

// NewTuiCmd creates a new tui command
func NewTuiCmd(flags *Flags, app *tradeoff.App) *TuiCmd {
	return &TuiCmd{
		flags: flags,
		app:   app,
	}
}

// Flags returns the TUI-specific flags for registration on the root command
func (cmd *TuiCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "profiler-port",
			Usage:       "enable pprof HTTP endpoint on specified port (e.g., 6060)",
			Sources:     cli.EnvVars("TRADEOFF_PROFILER_PORT"),
			Destination: &cmd.flags.ProfilerPort,
		},
	}
}

// Run executes the TUI. Exported for use as default command.
func (cmd *TuiCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *TuiCmd) run(ctx context.Context, _ *cli.Command) error {
	if cmd.flags.ProfilerPort > 0 {
		profServer := profiler.New(cmd.flags.ProfilerPort, logging.Component(logging.CmpProfiler))
		if err := profServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start profiler: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := profServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown profiler server")
			}
		}()
		log.Info().
			Str("url", fmt.Sprintf("http://%s/debug/pprof/", profServer.Addr())).
			Msg("profiler endpoint available")
	}

	session, err := cmd.app.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	var warnings []string
	for _, w := range cmd.app.Config.Warnings() {
		warnings = append(warnings, fmt.Sprintf("%s: %s", w.Category, w.Message))
	}

	return tui.Run(tui.Options{
		Context:       ctx,
		Session:       session,
		Notifications: cmd.app.Notifications,
		Health:        cmd.app.Health,
		Bus:           cmd.app.Bus,
		Identity:      cmd.app.Identity,
		Backend:       cmd.app.Config.Scoring.Backend,
		Warnings:      warnings,
	})
}
