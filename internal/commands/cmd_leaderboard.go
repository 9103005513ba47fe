package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/tradeoff"
	"github.com/hay-kot/tradeoff/pkg/iojson"
)

type LeaderboardCmd struct {
	flags *Flags
	app   *tradeoff.App

	// flags
	jsonOutput bool
	limit      int
}

// NewLeaderboardCmd creates a new leaderboard command
func NewLeaderboardCmd(flags *Flags, app *tradeoff.App) *LeaderboardCmd {
	return &LeaderboardCmd{flags: flags, app: app}
}

// Register adds the leaderboard command to the application
func (cmd *LeaderboardCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "leaderboard",
		Usage:     "Rank users by decisions analyzed",
		UsageText: "tradeoff leaderboard [--limit n] [--json]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "show at most n users (0 shows all)",
				Value:       10,
				Destination: &cmd.limit,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

// leaderboardRow is the JSON output format for tradeoff leaderboard --json.
type leaderboardRow struct {
	Rank           int    `json:"rank"`
	Username       string `json:"username"`
	TasksCompleted int    `json:"tasks_completed"`
}

func (cmd *LeaderboardCmd) run(ctx context.Context, c *cli.Command) error {
	stats, err := cmd.app.Tasks.ListUserStats(ctx)
	if err != nil {
		return fmt.Errorf("list user stats: %w", err)
	}

	if cmd.limit > 0 && len(stats) > cmd.limit {
		stats = stats[:cmd.limit]
	}

	rows := make([]leaderboardRow, len(stats))
	for i, s := range stats {
		rows[i] = leaderboardRow{Rank: i + 1, Username: s.Username, TasksCompleted: s.TasksCompleted}
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		return iojson.WriteWith(out, c.Root().ErrWriter, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(os.Stderr, "No users yet\n")
		return nil
	}

	var current string
	if user, err := cmd.app.Identity.CurrentUser(ctx); err == nil && user != nil {
		current = user.Username
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tUSER\tTASKS")
	for _, r := range rows {
		name := r.Username
		if name == current {
			name += " (you)"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\n", r.Rank, name, r.TasksCompleted)
	}
	return w.Flush()
}
