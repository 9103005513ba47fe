package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/tradeoff"
	"github.com/hay-kot/tradeoff/pkg/iojson"
)

// errSignedOut is returned by commands that need a signed-in user.
var errSignedOut = errors.New("not signed in; run 'tradeoff login' first")

type TasksCmd struct {
	flags *Flags
	app   *tradeoff.App

	// flags
	jsonOutput bool
}

// NewTasksCmd creates a new tasks command
func NewTasksCmd(flags *Flags, app *tradeoff.App) *TasksCmd {
	return &TasksCmd{flags: flags, app: app}
}

// Register adds the tasks command to the application
func (cmd *TasksCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "tasks",
		Usage:     "List your analyzed decisions",
		UsageText: "tradeoff tasks [--json]",
		Description: `Displays the decisions you have analyzed while signed in, newest first,
and whether each was verified with a photo.`,
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

func (cmd *TasksCmd) run(ctx context.Context, c *cli.Command) error {
	user, err := cmd.app.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return errSignedOut
	}

	tasks, err := cmd.app.Tasks.ListTasks(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No tasks yet. Analyze a decision with 'tradeoff analyze'\n")
		}
		return nil
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, t := range tasks {
			if err := iojson.WriteLine(out, t); err != nil {
				return fmt.Errorf("encode task: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tVERIFIED\tDECISION")
	for _, t := range tasks {
		verified := "-"
		if t.Verified {
			verified = humanize.RelTime(t.VerifiedAt, time.Now(), "ago", "from now")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.Time(t.CreatedAt), verified, truncate(t.Query, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
