package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/tradeoff"
	"github.com/hay-kot/tradeoff/pkg/iojson"
)

var errRollbackUnconfirmed = errors.New("rollback drops tables and their rows; pass --yes to confirm")

type DBCmd struct {
	flags *Flags
	app   *tradeoff.App

	// flags
	jsonOutput bool
	steps      int
	yes        bool
}

// NewDBCmd creates a new db command
func NewDBCmd(flags *Flags, app *tradeoff.App) *DBCmd {
	return &DBCmd{flags: flags, app: app}
}

// Register adds the db command to the application
func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "Inspect or roll back the local database schema",
		Commands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "List schema migrations and when they were applied",
				UsageText: "tradeoff db status [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON lines",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.status,
			},
			{
				Name:      "rollback",
				Usage:     "Revert the newest schema migrations",
				UsageText: "tradeoff db rollback [--steps N] --yes",
				Description: `Reverts the newest applied migrations, dropping the tables they created.
The next tradeoff command applies them again on an empty schema.`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Usage:       "number of migrations to revert",
						Value:       1,
						Destination: &cmd.steps,
					},
					&cli.BoolFlag{
						Name:        "yes",
						Usage:       "confirm the rollback",
						Destination: &cmd.yes,
					},
				},
				Action: cmd.rollback,
			},
		},
	})

	return app
}

type migrationRow struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
}

func (cmd *DBCmd) status(ctx context.Context, c *cli.Command) error {
	statuses, err := cmd.app.DB.SchemaStatus(ctx)
	if err != nil {
		return fmt.Errorf("schema status: %w", err)
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, s := range statuses {
			row := migrationRow{Version: s.Version, Name: s.Name, Applied: s.Applied()}
			if s.Applied() {
				row.AppliedAt = s.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
			}
			if err := iojson.WriteLine(out, row); err != nil {
				return fmt.Errorf("encode migration: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied() {
			applied = humanize.Time(s.AppliedAt)
		}
		_, _ = fmt.Fprintf(w, "%04d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	return w.Flush()
}

func (cmd *DBCmd) rollback(ctx context.Context, c *cli.Command) error {
	if !cmd.yes {
		return errRollbackUnconfirmed
	}

	if err := cmd.app.DB.Rollback(ctx, cmd.steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	version, err := cmd.app.DB.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}

	printer{w: c.Root().Writer}.Successf("Reverted %d migration(s); schema is at version %d", cmd.steps, version)
	return nil
}
